package types

// File Header
// Every file, directories and system files included, is described by a fixed-size header.
// MaxAlts copies of the header are written at the LBAs recorded in its index.sys slot.

// FileHeaderT describes a file and where its contents live.
type FileHeaderT struct {
	// Identifies the record. FileHeaderID or IndexHeaderID.
	ID uint32

	// Size of the contents in bytes.
	Size uint32

	// Number of sectors reserved for the contents.
	Clusters uint32

	// Version counter matched against directory entries to detect stale references.
	Generation uint8

	// FileTypeFile or FileTypeDir.
	Type FileType

	// Reserved flag bits.
	Flags uint16

	// Creation and modification times, seconds since the Unix epoch.
	Ctime uint32
	Mtime uint32

	// One retrieval pointer list per redundant copy of the contents.
	Pointers [MaxAlts][MaxFileHeaderPtrs]ExtentT
}

// IsDir reports whether the header describes a directory.
func (h *FileHeaderT) IsDir() bool {
	return h.Type == FileTypeDir
}

// Extents returns the non-terminated retrieval pointers of copy alt.
func (h *FileHeaderT) Extents(alt int) []ExtentT {
	if alt < 0 || alt >= MaxAlts {
		return nil
	}
	return TrimExtents(h.Pointers[alt][:])
}

// IndexSlotT is one index.sys entry: the header LBAs of a file ID.
type IndexSlotT [MaxAlts]uint32

// IsFree reports whether the slot is unused or explicitly released.
func (s IndexSlotT) IsFree() bool {
	return s[0] == 0 || s[0]&EmptyLBABit != 0
}
