package types

// Directory Entries
// A directory's contents are a packed stream of variable-length entries terminated by a
// file ID of zero.

const (
	// DirEntryHeaderSize is the fixed part of an entry: 3-byte ID, generation, name length.
	DirEntryHeaderSize = 5

	// MaxFileID is the largest file ID a directory entry can encode.
	MaxFileID = 0x00FFFFFF
)

// DirEntryT is a decoded directory entry.
type DirEntryT struct {
	// Index of the file's slot in index.sys.
	FileID uint32

	// Generation the referenced header must carry.
	Generation uint8

	// Name without the trailing NUL.
	Name string
}

// IsDot reports whether the entry is "." or "..".
func (e DirEntryT) IsDot() bool {
	return e.Name == "." || e.Name == ".."
}
