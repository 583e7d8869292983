package extract

import (
	"time"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Request represents an extraction request
type Request struct {
	Target app.ImageTarget

	// Source is the volume path of a file or directory
	Source string

	// Destination is a host file or directory. A directory source has its contents
	// written below Destination.
	Destination string

	Recursive bool
	Overwrite bool

	// ContinueOnError records unreadable files and keeps going
	ContinueOnError bool
}

// Response represents extraction results
type Response struct {
	Files       []ExtractedFile `json:"files" yaml:"files"`
	Directories int             `json:"directories" yaml:"directories"`
	TotalBytes  int64           `json:"total_bytes" yaml:"total_bytes"`
	Failures    []Failure       `json:"failures,omitempty" yaml:"failures,omitempty"`
	ElapsedTime time.Duration   `json:"elapsed_time" yaml:"elapsed_time"`
}

// ExtractedFile is one file written to the host
type ExtractedFile struct {
	Source      string `json:"source" yaml:"source"`
	Destination string `json:"destination" yaml:"destination"`
	FileID      uint32 `json:"file_id" yaml:"file_id"`
	Size        int64  `json:"size" yaml:"size"`
}

// Failure is a file that could not be extracted
type Failure struct {
	Source string `json:"source" yaml:"source"`
	Code   string `json:"code" yaml:"code"`
	Error  string `json:"error" yaml:"error"`
}
