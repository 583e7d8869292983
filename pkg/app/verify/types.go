package verify

import (
	"time"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Request represents a volume verification request
type Request struct {
	Target app.ImageTarget
}

// Response represents verification results
type Response struct {
	Image       string        `json:"image" yaml:"image"`
	SessionID   string        `json:"session_id" yaml:"session_id"`
	Healthy     bool          `json:"healthy" yaml:"healthy"`
	HomeBlock   HomeCheck     `json:"home_block" yaml:"home_block"`
	FreeMap     FreeMapCheck  `json:"freemap" yaml:"freemap"`
	Tree        TreeCheck     `json:"tree" yaml:"tree"`
	Capacity    Capacity      `json:"capacity" yaml:"capacity"`
	ElapsedTime time.Duration `json:"elapsed_time" yaml:"elapsed_time"`
}

// HomeCheck reports how the home block copies agreed
type HomeCheck struct {
	Copy     int      `json:"copy" yaml:"copy"`
	Valid    string   `json:"valid" yaml:"valid"`
	Matching string   `json:"matching" yaml:"matching"`
	Rejected []string `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// FreeMapCheck reports whether free and used sectors partition the volume
type FreeMapCheck struct {
	Consistent  bool         `json:"consistent" yaml:"consistent"`
	UsedRuns    int          `json:"used_runs" yaml:"used_runs"`
	UsedSectors uint64       `json:"used_sectors" yaml:"used_sectors"`
	Expected    app.Extent   `json:"expected" yaml:"expected"`
	Merged      []app.Extent `json:"merged" yaml:"merged"`
	Conflicts   []Conflict   `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Unreadable  []Unreadable `json:"unreadable,omitempty" yaml:"unreadable,omitempty"`
}

// Conflict is a sector run claimed twice
type Conflict struct {
	Owner  string     `json:"owner" yaml:"owner"`
	Extent app.Extent `json:"extent" yaml:"extent"`
	Error  string     `json:"error" yaml:"error"`
}

// Unreadable is a file whose header could not be loaded
type Unreadable struct {
	FileID uint32 `json:"file_id" yaml:"file_id"`
	Error  string `json:"error" yaml:"error"`
}

// TreeCheck reports what the directory tree reaches
type TreeCheck struct {
	Directories int      `json:"directories" yaml:"directories"`
	Files       int      `json:"files" yaml:"files"`
	Orphans     []uint32 `json:"orphans,omitempty" yaml:"orphans,omitempty"`
}

// Capacity is the statfs view of the volume
type Capacity struct {
	BlockSize uint32 `json:"block_size" yaml:"block_size"`
	Blocks    uint64 `json:"blocks" yaml:"blocks"`
	BFree     uint64 `json:"bfree" yaml:"bfree"`
	BAvail    uint64 `json:"bavail" yaml:"bavail"`
	Files     uint64 `json:"files" yaml:"files"`
	FFree     uint64 `json:"ffree" yaml:"ffree"`
}
