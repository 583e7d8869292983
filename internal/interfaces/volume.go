package interfaces

import (
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// HomeBlockReader provides access to a decoded home block
type HomeBlockReader interface {
	// HomeBlock returns the decoded record
	HomeBlock() *types.HomeBlockT

	// ComputedChecksum returns the sum of the record's 32-bit words, zero when intact
	ComputedChecksum() uint32

	// IndexLBAs returns the header locations of index.sys
	IndexLBAs() [types.MaxAlts]uint32

	// MaxLBA returns the highest sector of the volume
	MaxLBA() uint32

	// Validate checks the record against the fixed constants of the format
	Validate() error
}

// FileHeaderReader provides access to a decoded file header
type FileHeaderReader interface {
	// Header returns the decoded record
	Header() *types.FileHeaderT

	// Size returns the size of the contents in bytes
	Size() uint32

	// IsDirectory reports whether the header describes a directory
	IsDirectory() bool

	// Extents returns the retrieval pointers of the given copy
	Extents(alt int) []types.ExtentT

	// Validate checks the id tag and, when expectedGen is non-zero, the generation
	Validate(expectedID uint32, expectedGen uint8) error
}

// HeaderResolver loads the header of a file ID through the index table
type HeaderResolver interface {
	// ResolveHeader returns the header of fid. A non-zero expectedGen must match.
	ResolveHeader(fid uint32, expectedGen uint8) (*types.FileHeaderT, error)
}

// FreeSpaceAllocator hands out and takes back runs of sectors
type FreeSpaceAllocator interface {
	// Find carves up to n sectors out of the free list
	Find(n uint32, hints []types.ExtentT, minSector uint32) (types.ExtentT, error)

	// Free returns a run of sectors to the free list
	Free(extent types.ExtentT) error

	// Entries returns a copy of the free list
	Entries() []types.ExtentT

	// FreeSectors returns the total number of free sectors
	FreeSectors() uint64
}
