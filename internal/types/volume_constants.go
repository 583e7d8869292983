// Package types implements the on-disk data structures of the AGC fsys volume format
// used by Atari Games and Midway Games West arcade hardware.
package types

// Volume Geometry
// All addressing is sector granular. Critical structures are stored in MaxAlts copies.

const (
	// BytesPerSector is the size of a sector, the unit of all on-disk addressing.
	BytesPerSector = 512

	// MaxAlts is the number of redundant copies kept of the home block and of every file header.
	MaxAlts = 3

	// MaxFileHeaderPtrs is the number of extents in each copy's retrieval pointer list.
	MaxFileHeaderPtrs = 20

	// HomeBlockRange bounds the sector range over which the home block copies are spread.
	HomeBlockRange = 1024

	// ExtentSize is the on-disk size of a single extent (start plus length).
	ExtentSize = 8

	// IndexSlotSize is the on-disk size of one index.sys slot (MaxAlts LBAs).
	IndexSlotSize = MaxAlts * 4

	// MaxFilenameLen is the longest name a directory entry can hold, not counting the NUL.
	MaxFilenameLen = 255
)

// HomeBlockLBA returns the sector holding home block copy idx when the copies are spread
// across rng sectors.
func HomeBlockLBA(idx int, rng uint32) uint32 {
	return uint32(idx)*(rng/MaxAlts) + 1
}

// HomeBlockLBAs returns the placement of all home block copies for a volume of the
// given size in sectors.
func HomeBlockLBAs(volumeSectors uint32, rng uint32) [MaxAlts]uint32 {
	if rng == 0 || rng > volumeSectors {
		rng = volumeSectors
	}
	var lbas [MaxAlts]uint32
	for i := range lbas {
		lbas[i] = HomeBlockLBA(i, rng)
	}
	return lbas
}

// Record identifiers

const (
	// HomeBlockID tags a home block.
	HomeBlockID uint32 = 0xFEEDF00D

	// FileHeaderID tags the header of an ordinary file or directory.
	FileHeaderID uint32 = 0xC0EDBABE

	// IndexHeaderID tags the header of index.sys.
	IndexHeaderID uint32 = 0xC0CAC01A
)

// Feature and option bits stored in the home block.

const (
	// FeatureCMTime means file headers carry creation and modification times.
	FeatureCMTime uint32 = 0x00000001

	// FeatureABTime means file headers carry access and backup times.
	FeatureABTime uint32 = 0x00000002

	// FeatureExtensionHeader means files may carry extension headers.
	FeatureExtensionHeader uint32 = 0x00000004

	// FeatureJournal means the volume keeps journal.sys.
	FeatureJournal uint32 = 0x00000008

	// DefaultFeatures is the feature set this implementation writes.
	DefaultFeatures = FeatureCMTime | FeatureJournal

	// DefaultOptions is the option set this implementation writes.
	DefaultOptions = FeatureCMTime | FeatureJournal

	// FeatureCheckMask selects the bits whose combination must equal FeatureCMTime.
	FeatureCheckMask = FeatureCMTime | FeatureExtensionHeader | FeatureABTime
)

// Fixed structure versions and sizes written into, and expected from, the home block.

const (
	HomeBlockMajor       = 1
	HomeBlockMinor       = 1
	HomeBlockSize        = 140
	FileHeaderMajor      = 1
	FileHeaderMinor      = 1
	FileHeaderSize       = 504
	RetrievalPtrMajor    = 1
	RetrievalPtrMinor    = 1
	RetrievalPtrSize     = ExtentSize
	DefaultClusterSize   = 1
	DefaultExtendSectors = 10
)

// System file indices. These files have no directory entry of their own.

const (
	IndexFileID   uint32 = 0
	FreeMapFileID uint32 = 1
	RootDirFileID uint32 = 2
	JournalFileID uint32 = 3

	// FirstUserFileID is the first ID handed out to ordinary files.
	FirstUserFileID uint32 = 4
)

// SystemFileNames names the reserved files by ID.
var SystemFileNames = [...]string{"index.sys", "freemap.sys", "rootdir.sys", "journal.sys"}

// EmptyLBABit on the first LBA of an index slot marks the file ID as free.
const EmptyLBABit uint32 = 0x80000000

// FileType is the type byte of a file header.
type FileType uint8

const (
	FileTypeFile FileType = 1
	FileTypeDir  FileType = 2
)

// String returns a short label for the type.
func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "REG"
	case FileTypeDir:
		return "DIR"
	default:
		return "UNK"
	}
}

// Partition table values identifying an AGC fsys partition in an MBR.

const (
	PartitionTableOffset = 0x1BE
	PartitionEntrySize   = 16
	PartitionEntries     = 4
	PartitionBootable    = 0x80
	PartitionTypeAGC     = 0x8F
)
