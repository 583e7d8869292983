package index_table

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// IndexTable is the decoded contents of index.sys: one slot of header LBAs per file ID
type IndexTable struct {
	slots []types.IndexSlotT
}

// NewIndexTable decodes up to capacity slots from data. A short buffer yields fewer slots.
func NewIndexTable(data []byte, capacity int, endian binary.ByteOrder) *IndexTable {
	n := len(data) / types.IndexSlotSize
	if capacity >= 0 && n > capacity {
		n = capacity
	}

	slots := make([]types.IndexSlotT, n)
	for i := range slots {
		off := i * types.IndexSlotSize
		for alt := 0; alt < types.MaxAlts; alt++ {
			slots[i][alt] = endian.Uint32(data[off+alt*4 : off+alt*4+4])
		}
	}
	return &IndexTable{slots: slots}
}

// NewEmptyIndexTable returns a table of capacity unused slots
func NewEmptyIndexTable(capacity int) *IndexTable {
	return &IndexTable{slots: make([]types.IndexSlotT, capacity)}
}

// Capacity returns the number of slots in the table
func (t *IndexTable) Capacity() int {
	return len(t.slots)
}

// Slot returns the header LBAs of fid
func (t *IndexTable) Slot(fid uint32) (types.IndexSlotT, error) {
	if uint64(fid) >= uint64(len(t.slots)) {
		return types.IndexSlotT{}, fmt.Errorf("file id %d beyond index capacity %d: %w", fid, len(t.slots), types.ErrInvalidFileID)
	}
	return t.slots[fid], nil
}

// IsFree reports whether fid has no file. IDs beyond the table are treated as free.
func (t *IndexTable) IsFree(fid uint32) bool {
	if uint64(fid) >= uint64(len(t.slots)) {
		return true
	}
	return t.slots[fid].IsFree()
}

// Set stores the header LBAs of fid
func (t *IndexTable) Set(fid uint32, slot types.IndexSlotT) error {
	if uint64(fid) >= uint64(len(t.slots)) {
		return fmt.Errorf("failed to set slot %d: %w", fid, types.ErrIndexFull)
	}
	t.slots[fid] = slot
	return nil
}

// NextFree returns the first free ID at or after start
func (t *IndexTable) NextFree(start uint32) (uint32, error) {
	for fid := uint64(start); fid < uint64(len(t.slots)); fid++ {
		if t.slots[fid].IsFree() {
			return uint32(fid), nil
		}
	}
	return 0, fmt.Errorf("no free slot at or after %d: %w", start, types.ErrIndexFull)
}

// Used returns the number of slots holding a file
func (t *IndexTable) Used() int {
	used := 0
	for _, s := range t.slots {
		if !s.IsFree() {
			used++
		}
	}
	return used
}

// Slots returns the table contents. The slice must not be modified.
func (t *IndexTable) Slots() []types.IndexSlotT {
	return t.slots
}

// Encode serializes the first n slots
func (t *IndexTable) Encode(n int) []byte {
	if n > len(t.slots) {
		n = len(t.slots)
	}
	data := make([]byte, n*types.IndexSlotSize)
	for i := 0; i < n; i++ {
		off := i * types.IndexSlotSize
		for alt := 0; alt < types.MaxAlts; alt++ {
			binary.LittleEndian.PutUint32(data[off+alt*4:off+alt*4+4], t.slots[i][alt])
		}
	}
	return data
}

// SystemName returns the reserved name of a system file ID, or "" for ordinary IDs
func SystemName(fid uint32) string {
	if fid < uint32(len(types.SystemFileNames)) {
		return types.SystemFileNames[fid]
	}
	return ""
}
