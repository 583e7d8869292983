package inspect

import (
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Sections a request can ask for
const (
	SectionHome    = "home"
	SectionIndex   = "index"
	SectionFreeMap = "freemap"
	SectionTree    = "tree"
	SectionDir     = "dir"
	SectionLookup  = "lookup"
)

// DefaultSections are dumped when a request names none
var DefaultSections = []string{SectionHome, SectionIndex, SectionFreeMap}

// Request represents an inspection request
type Request struct {
	Target   app.ImageTarget
	Sections []string

	// Path is the directory listed by dir, the file resolved by lookup and the start of tree
	Path string

	// MaxDepth limits tree below Path. Zero is unlimited.
	MaxDepth int

	// Extents includes the retrieval pointers of every header shown
	Extents bool
}

// Response represents inspection results
type Response struct {
	Image       string            `json:"image" yaml:"image"`
	SessionID   string            `json:"session_id" yaml:"session_id"`
	Home        *HomeInfo         `json:"home,omitempty" yaml:"home,omitempty"`
	Index       []IndexSlot       `json:"index,omitempty" yaml:"index,omitempty"`
	FreeMap     *FreeMapInfo      `json:"freemap,omitempty" yaml:"freemap,omitempty"`
	Tree        []TreeEntry       `json:"tree,omitempty" yaml:"tree,omitempty"`
	Directory   *DirectoryListing `json:"directory,omitempty" yaml:"directory,omitempty"`
	Lookup      *FileInfo         `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	ElapsedTime time.Duration     `json:"elapsed_time" yaml:"elapsed_time"`
}

// HomeInfo describes the selected home block and how its copies agreed
type HomeInfo struct {
	Copy             int                   `json:"copy" yaml:"copy"`
	Valid            string                `json:"valid" yaml:"valid"`
	Matching         string                `json:"matching" yaml:"matching"`
	LBAs             [types.MaxAlts]uint32 `json:"lbas" yaml:"lbas"`
	CopyErrors       []string              `json:"copy_errors,omitempty" yaml:"copy_errors,omitempty"`
	Version          string                `json:"version" yaml:"version"`
	Checksum         uint32                `json:"checksum" yaml:"checksum"`
	ComputedChecksum uint32                `json:"computed_checksum" yaml:"computed_checksum"`
	MaxLBA           uint32                `json:"max_lba" yaml:"max_lba"`
	DefExtend        uint16                `json:"def_extend" yaml:"def_extend"`
	Features         uint32                `json:"features" yaml:"features"`
	Options          uint32                `json:"options" yaml:"options"`
	UpdateInProgress bool                  `json:"update_in_progress" yaml:"update_in_progress"`
	Created          time.Time             `json:"created" yaml:"created"`
	Modified         time.Time             `json:"modified" yaml:"modified"`
	Index            [types.MaxAlts]uint32 `json:"index" yaml:"index"`
	Journal          [types.MaxAlts]uint32 `json:"journal" yaml:"journal"`
}

// IndexSlot is one in-use index.sys entry
type IndexSlot struct {
	FileID uint32                `json:"file_id" yaml:"file_id"`
	Name   string                `json:"name,omitempty" yaml:"name,omitempty"`
	LBAs   [types.MaxAlts]uint32 `json:"lbas" yaml:"lbas"`
}

// FreeMapInfo describes the free list
type FreeMapInfo struct {
	Entries     []app.Extent `json:"entries" yaml:"entries"`
	Capacity    int          `json:"capacity" yaml:"capacity"`
	FreeSectors uint64       `json:"free_sectors" yaml:"free_sectors"`
}

// FileInfo describes one file and its header
type FileInfo struct {
	FileID     uint32         `json:"file_id" yaml:"file_id"`
	Name       string         `json:"name" yaml:"name"`
	Path       string         `json:"path,omitempty" yaml:"path,omitempty"`
	Type       string         `json:"type" yaml:"type"`
	Size       uint32         `json:"size" yaml:"size"`
	Clusters   uint32         `json:"clusters" yaml:"clusters"`
	Generation uint8          `json:"generation" yaml:"generation"`
	Modified   time.Time      `json:"modified" yaml:"modified"`
	Copies     int            `json:"copies" yaml:"copies"`
	Extents    [][]app.Extent `json:"extents,omitempty" yaml:"extents,omitempty"`
	Error      string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// TreeEntry is a file reached by a tree walk
type TreeEntry struct {
	FileInfo `yaml:",inline"`

	Depth int `json:"depth" yaml:"depth"`
}

// DirectoryListing is the contents of one directory
type DirectoryListing struct {
	Path    string     `json:"path" yaml:"path"`
	FileID  uint32     `json:"file_id" yaml:"file_id"`
	Entries []FileInfo `json:"entries" yaml:"entries"`
}
