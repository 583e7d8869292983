package types

// Home Block
// The home block is the volume descriptor. MaxAlts copies are written at HomeBlockLBAs and
// the 32-bit little-endian words of each copy sum to zero.

// HomeBlockT describes a volume.
type HomeBlockT struct {
	// Identifies the record as a home block. Always HomeBlockID.
	ID uint32

	// Version and size of the home block structure.
	HbMinor uint16
	HbMajor uint16
	HbSize  uint16

	// Version and size of file headers on this volume.
	FhMinor uint16
	FhMajor uint16
	FhSize  uint16

	// Version, size and pointer count of extension file headers.
	EfhMinor uint16
	EfhMajor uint16
	EfhSize  uint16
	EfhPtrs  uint16

	// Version and size of retrieval pointers.
	RpMinor uint16
	RpMajor uint8
	RpSize  uint8

	// Sectors per cluster. Always 1.
	Cluster uint8

	// Number of redundant copies of critical structures. Always MaxAlts.
	MaxAlts uint8

	// Default number of sectors to extend a file by.
	DefExtend uint16

	// Volume timestamps, seconds since the Unix epoch.
	Ctime uint32
	Mtime uint32
	Atime uint32
	Btime uint32

	// Value chosen so that the words of the record sum to zero.
	Chksum uint32

	// Features present on the volume and options enabled on it.
	Features uint32
	Options  uint32

	// LBAs of the index.sys file header copies.
	Index [MaxAlts]uint32

	// LBAs of the boot loader file header copies.
	Boot [MaxAlts]uint32

	// Highest LBA of the volume.
	MaxLBA uint32

	// Non-zero while an update of the volume is in progress.
	UpdFlag uint32

	// LBAs of the boot stage images.
	Boot1 [MaxAlts]uint32
	Boot2 [MaxAlts]uint32
	Boot3 [MaxAlts]uint32

	// LBAs of the journal.sys file header copies.
	Journal [MaxAlts]uint32
}
