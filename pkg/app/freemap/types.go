package freemap

import (
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// SampleCapacity is the free list capacity used with the sample list
const SampleCapacity = 9

// Operation kinds
const (
	OpFind = "find"
	OpFree = "free"
)

// Request represents an allocator simulation. With no image the sample free list is used;
// with one, a copy of the volume's free list. The image is never written.
type Request struct {
	Target app.ImageTarget

	// Capacity overrides SampleCapacity for the sample list
	Capacity int

	// Operations are "find:N", "find:N@MIN" or "free:START+LENGTH". Numbers may be hex.
	Operations []string

	parsed []Operation
}

// Operation is one parsed simulator step
type Operation struct {
	Kind      string
	Count     uint32
	MinSector uint32
	Extent    types.ExtentT
}

// Response represents simulation results
type Response struct {
	Source      string       `json:"source" yaml:"source"`
	Capacity    int          `json:"capacity" yaml:"capacity"`
	Initial     []app.Extent `json:"initial" yaml:"initial"`
	Steps       []Step       `json:"steps" yaml:"steps"`
	Final       []app.Extent `json:"final" yaml:"final"`
	FreeSectors uint64       `json:"free_sectors" yaml:"free_sectors"`
}

// Step is the outcome of one operation
type Step struct {
	Operation   string       `json:"operation" yaml:"operation"`
	Allocated   []app.Extent `json:"allocated,omitempty" yaml:"allocated,omitempty"`
	Code        string       `json:"code,omitempty" yaml:"code,omitempty"`
	Error       string       `json:"error,omitempty" yaml:"error,omitempty"`
	Entries     int          `json:"entries" yaml:"entries"`
	FreeSectors uint64       `json:"free_sectors" yaml:"free_sectors"`
}
