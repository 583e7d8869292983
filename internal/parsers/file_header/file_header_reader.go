package file_header

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

const pointersOffset = 24

// fileHeaderReader implements the FileHeaderReader interface
type fileHeaderReader struct {
	header *types.FileHeaderT
	endian binary.ByteOrder
}

// NewFileHeaderReader decodes a file header from the start of a sector
func NewFileHeaderReader(data []byte, endian binary.ByteOrder) (interfaces.FileHeaderReader, error) {
	if len(data) < types.FileHeaderSize {
		return nil, fmt.Errorf("data too small for file header: %d bytes", len(data))
	}

	return &fileHeaderReader{
		header: parseFileHeader(data, endian),
		endian: endian,
	}, nil
}

// parseFileHeader parses raw bytes into a FileHeaderT structure
func parseFileHeader(data []byte, endian binary.ByteOrder) *types.FileHeaderT {
	fh := &types.FileHeaderT{
		ID:         endian.Uint32(data[0:4]),
		Size:       endian.Uint32(data[4:8]),
		Clusters:   endian.Uint32(data[8:12]),
		Generation: data[12],
		Type:       types.FileType(data[13]),
		Flags:      endian.Uint16(data[14:16]),
		Ctime:      endian.Uint32(data[16:20]),
		Mtime:      endian.Uint32(data[20:24]),
	}

	off := pointersOffset
	for alt := 0; alt < types.MaxAlts; alt++ {
		for i := 0; i < types.MaxFileHeaderPtrs; i++ {
			fh.Pointers[alt][i] = types.ExtentT{
				Start:  endian.Uint32(data[off : off+4]),
				Length: endian.Uint32(data[off+4 : off+8]),
			}
			off += types.ExtentSize
		}
	}
	return fh
}

// Header returns the decoded record
func (fhr *fileHeaderReader) Header() *types.FileHeaderT {
	return fhr.header
}

// Size returns the size of the contents in bytes
func (fhr *fileHeaderReader) Size() uint32 {
	return fhr.header.Size
}

// IsDirectory reports whether the header describes a directory
func (fhr *fileHeaderReader) IsDirectory() bool {
	return fhr.header.IsDir()
}

// Extents returns the retrieval pointers of the given copy
func (fhr *fileHeaderReader) Extents(alt int) []types.ExtentT {
	return fhr.header.Extents(alt)
}

// Validate checks the id tag and, when expectedGen is non-zero, the generation
func (fhr *fileHeaderReader) Validate(expectedID uint32, expectedGen uint8) error {
	if fhr.header.ID != expectedID {
		return fmt.Errorf("file header id 0x%08X, want 0x%08X: %w", fhr.header.ID, expectedID, types.ErrBadRecordID)
	}
	if expectedGen != 0 && fhr.header.Generation != expectedGen {
		return fmt.Errorf("file header generation %d, want %d: %w", fhr.header.Generation, expectedGen, types.ErrGenerationMatch)
	}
	return nil
}

// EncodeFileHeader serializes fh into a full sector
func EncodeFileHeader(fh *types.FileHeaderT) []byte {
	data := make([]byte, types.BytesPerSector)
	le := binary.LittleEndian

	le.PutUint32(data[0:4], fh.ID)
	le.PutUint32(data[4:8], fh.Size)
	le.PutUint32(data[8:12], fh.Clusters)
	data[12] = fh.Generation
	data[13] = uint8(fh.Type)
	le.PutUint16(data[14:16], fh.Flags)
	le.PutUint32(data[16:20], fh.Ctime)
	le.PutUint32(data[20:24], fh.Mtime)

	off := pointersOffset
	for alt := 0; alt < types.MaxAlts; alt++ {
		for i := 0; i < types.MaxFileHeaderPtrs; i++ {
			le.PutUint32(data[off:off+4], fh.Pointers[alt][i].Start)
			le.PutUint32(data[off+4:off+8], fh.Pointers[alt][i].Length)
			off += types.ExtentSize
		}
	}
	return data
}

// AppendExtent adds a run of sectors to copy alt's pointer list, extending the last extent
// when the run is contiguous with it
func AppendExtent(fh *types.FileHeaderT, alt int, e types.ExtentT) error {
	if e.IsZero() {
		return fmt.Errorf("failed to append extent %s: %w", e, types.ErrEmptyExtent)
	}
	list := &fh.Pointers[alt]
	n := len(types.TrimExtents(list[:]))
	if n > 0 && list[n-1].End() == e.Start {
		list[n-1].Length += e.Length
		return nil
	}
	if n >= types.MaxFileHeaderPtrs {
		return fmt.Errorf("failed to append extent %s: %w", e, types.ErrTooManyExtents)
	}
	list[n] = e
	return nil
}
