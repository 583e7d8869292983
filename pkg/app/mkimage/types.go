package mkimage

import (
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// Request represents a volume creation request
type Request struct {
	Output  string
	Sectors uint32

	// Source is a host directory whose tree is copied into the root directory
	Source string

	IndexSlots     int
	FreeMapEntries int
	ContentCopies  int

	// Timestamp is stored on every record. Zero uses the current time.
	Timestamp uint32

	// Force replaces an existing Output
	Force bool
}

// Response represents volume creation results
type Response struct {
	Output      string                `json:"output" yaml:"output"`
	Sectors     uint32                `json:"sectors" yaml:"sectors"`
	Bytes       int64                 `json:"bytes" yaml:"bytes"`
	HomeBlocks  [types.MaxAlts]uint32 `json:"home_blocks" yaml:"home_blocks"`
	Added       int                   `json:"added" yaml:"added"`
	FileIDs     int                   `json:"file_ids" yaml:"file_ids"`
	FreeSectors uint64                `json:"free_sectors" yaml:"free_sectors"`
	Consistent  bool                  `json:"consistent" yaml:"consistent"`
	SessionID   string                `json:"session_id" yaml:"session_id"`
	ElapsedTime time.Duration         `json:"elapsed_time" yaml:"elapsed_time"`
}
