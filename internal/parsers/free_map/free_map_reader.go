package free_map

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// DecodeFreeMap reads the free list stored in freemap.sys. Decoding stops at the first
// zero/zero extent, at capacity entries, or at the end of data.
func DecodeFreeMap(data []byte, capacity int, endian binary.ByteOrder) []types.ExtentT {
	n := len(data) / types.ExtentSize
	if capacity >= 0 && n > capacity {
		n = capacity
	}

	entries := make([]types.ExtentT, 0, n)
	for i := 0; i < n; i++ {
		off := i * types.ExtentSize
		e := types.ExtentT{
			Start:  endian.Uint32(data[off : off+4]),
			Length: endian.Uint32(data[off+4 : off+8]),
		}
		if e.Start == 0 && e.Length == 0 {
			break
		}
		entries = append(entries, e)
	}
	return entries
}

// EncodeFreeMap serializes entries followed by a zero/zero terminator into a buffer of
// size bytes
func EncodeFreeMap(entries []types.ExtentT, size int) ([]byte, error) {
	need := (len(entries) + 1) * types.ExtentSize
	if need > size {
		return nil, fmt.Errorf("free map of %d entries needs %d bytes, have %d: %w", len(entries), need, size, types.ErrFreeListFull)
	}

	data := make([]byte, size)
	for i, e := range entries {
		off := i * types.ExtentSize
		binary.LittleEndian.PutUint32(data[off:off+4], e.Start)
		binary.LittleEndian.PutUint32(data[off+4:off+8], e.Length)
	}
	return data, nil
}

// CheckOrdering reports the first pair of entries that overlap, touch or are out of order
func CheckOrdering(entries []types.ExtentT) error {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.Start < prev.End() {
			return fmt.Errorf("%w: free map entry %d %s overlaps or precedes entry %d %s", types.ErrCorruption, i, cur, i-1, prev)
		}
		if cur.Start == prev.End() {
			return fmt.Errorf("%w: free map entries %d and %d touch but are not merged", types.ErrCorruption, i-1, i)
		}
	}
	return nil
}
