package services

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// ContentReader maps byte ranges of a file onto the sectors listed in the first copy of
// its retrieval pointers. It keeps one sector buffer; reading another sector replaces it.
type ContentReader struct {
	store   interfaces.SectorStore
	name    string
	size    uint32
	extents [types.MaxFileHeaderPtrs]types.ExtentT
	pos     int64

	bufLBA   uint32
	buf      []byte
	bufValid bool

	logger  zerolog.Logger
	verbose types.Verbosity
	metrics *Metrics
}

// NewContentReader returns a reader over the contents described by header
func NewContentReader(store interfaces.SectorStore, header *types.FileHeaderT, name string) *ContentReader {
	return &ContentReader{
		store:   store,
		name:    name,
		size:    header.Size,
		extents: header.Pointers[0],
		logger:  zerolog.Nop(),
	}
}

// SetLogger sets the logger. Sector reads are logged at debug level when verbose has
// VerboseRead.
func (r *ContentReader) SetLogger(logger zerolog.Logger, verbose types.Verbosity) {
	r.logger = logger
	r.verbose = verbose
}

// SetMetrics sets the collectors updated by Read
func (r *ContentReader) SetMetrics(m *Metrics) {
	r.metrics = m
}

// Size returns the declared size of the contents
func (r *ContentReader) Size() int64 {
	return int64(r.size)
}

// Position returns the offset used by sequential reads
func (r *ContentReader) Position() int64 {
	return r.pos
}

// Read copies up to len(dst) bytes starting at offset. It returns 0 at or after the end of
// the file and never reads past it.
func (r *ContentReader) Read(dst []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, fmt.Errorf("failed to read %s at %d: %w", r.name, offset, types.ErrInvalidSeek)
	}
	size := int64(r.size)
	if offset >= size || len(dst) == 0 {
		return 0, nil
	}
	want := len(dst)
	if remaining := size - offset; int64(want) > remaining {
		want = int(remaining)
	}

	relSector := uint32(offset / types.BytesPerSector)
	sectorOffset := int(offset % types.BytesPerSector)

	idx := 0
	for idx < types.MaxFileHeaderPtrs && !r.extents[idx].IsZero() && r.extents[idx].Length <= relSector {
		relSector -= r.extents[idx].Length
		idx++
	}

	n := 0
	for n < want {
		if idx >= types.MaxFileHeaderPtrs || r.extents[idx].IsZero() {
			r.metrics.observeContentRead(n)
			return n, fmt.Errorf("failed to read %s at %d: %w", r.name, offset+int64(n), types.ErrExtentListEnded)
		}
		extent := r.extents[idx]
		if relSector >= extent.Length {
			relSector = 0
			idx++
			continue
		}

		lba := extent.Start + relSector
		sector, err := r.sector(lba)
		if err != nil {
			r.metrics.observeContentRead(n)
			return n, fmt.Errorf("failed to read %s sector 0x%08X: %w", r.name, lba, err)
		}
		n += copy(dst[n:want], sector[sectorOffset:])
		sectorOffset = 0
		relSector++
	}

	r.metrics.observeContentRead(n)
	return n, nil
}

func (r *ContentReader) sector(lba uint32) ([]byte, error) {
	if r.bufValid && r.bufLBA == lba {
		return r.buf, nil
	}
	if r.verbose.Has(types.VerboseRead) {
		r.logger.Debug().Str("file", r.name).Uint32("lba", lba).Msg("reading sector")
	}
	r.bufValid = false
	sector, err := r.store.ReadSector(lba)
	if err != nil {
		return nil, err
	}
	r.buf = sector
	r.bufLBA = lba
	r.bufValid = true
	return sector, nil
}

// Seek sets the position for sequential reads. Positions before the start or past the
// end of the file are rejected.
func (r *ContentReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		target = int64(r.size) + offset
	default:
		return r.pos, fmt.Errorf("failed to seek %s: whence %d: %w", r.name, whence, types.ErrInvalidSeek)
	}
	if target < 0 || target > int64(r.size) {
		return r.pos, fmt.Errorf("failed to seek %s to %d of %d: %w", r.name, target, r.size, types.ErrInvalidSeek)
	}
	r.pos = target
	return r.pos, nil
}

// Stream returns an io.Reader that reads sequentially from the current position
func (r *ContentReader) Stream() io.Reader {
	return contentStream{r}
}

type contentStream struct {
	r *ContentReader
}

func (s contentStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.r.Read(p, s.r.pos)
	s.r.pos += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
