package services

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deploymenttheory/go-agcfs/internal/interfaces"
	"github.com/deploymenttheory/go-agcfs/internal/types"
)

var _ interfaces.FreeSpaceAllocator = (*FreeSpace)(nil)

// leastBadLimit bounds how far short of a request the fallback entry may be
const leastBadLimit = 0x00FFFFFF

// FreeSpace is the bounded, ascending list of free extents loaded from freemap.sys
type FreeSpace struct {
	entries  []types.ExtentT
	capacity int
	dirty    bool
	logger   zerolog.Logger
	verbose  types.Verbosity
	metrics  *Metrics
}

// NewFreeSpace copies entries into an allocator that may hold up to capacity extents
func NewFreeSpace(entries []types.ExtentT, capacity int) (*FreeSpace, error) {
	if len(entries) > capacity {
		return nil, fmt.Errorf("free list of %d entries exceeds capacity %d: %w", len(entries), capacity, types.ErrFreeListFull)
	}
	list := make([]types.ExtentT, len(entries), capacity)
	copy(list, entries)
	return &FreeSpace{
		entries:  list,
		capacity: capacity,
		logger:   zerolog.Nop(),
	}, nil
}

// SetLogger sets the logger for allocator events. Primitive actions are logged at debug
// level when verbose has VerboseFree.
func (f *FreeSpace) SetLogger(logger zerolog.Logger, verbose types.Verbosity) {
	f.logger = logger
	f.verbose = verbose
}

// SetMetrics sets the collectors updated by Find and Free
func (f *FreeSpace) SetMetrics(m *Metrics) {
	f.metrics = m
	m.observeAllocator("load", nil, len(f.entries), f.FreeSectors())
}

// Clone returns an independent copy without logger or metrics
func (f *FreeSpace) Clone() *FreeSpace {
	c, _ := NewFreeSpace(f.entries, f.capacity)
	c.dirty = f.dirty
	return c
}

// Entries returns a copy of the free list
func (f *FreeSpace) Entries() []types.ExtentT {
	out := make([]types.ExtentT, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len returns the number of entries in use
func (f *FreeSpace) Len() int {
	return len(f.entries)
}

// Capacity returns the maximum number of entries
func (f *FreeSpace) Capacity() int {
	return f.capacity
}

// Dirty reports whether the list changed since it was loaded
func (f *FreeSpace) Dirty() bool {
	return f.dirty
}

// FreeSectors returns the total number of free sectors
func (f *FreeSpace) FreeSectors() uint64 {
	var total uint64
	for _, e := range f.entries {
		total += uint64(e.Length)
	}
	return total
}

func (f *FreeSpace) debug() *zerolog.Event {
	if !f.verbose.Has(types.VerboseFree) {
		return nil
	}
	return f.logger.Debug()
}

// Find carves up to n sectors out of the free list. Candidates are tried in order:
// growth directly after one of hints (may return fewer than n sectors), an entry of exactly
// n sectors, then an entry with room for n sectors. When minSector is non-zero the last two
// only consider space at or after it, retrying from anywhere if that fails. As a last resort
// the largest entry is taken whole even though it is short.
func (f *FreeSpace) Find(n uint32, hints []types.ExtentT, minSector uint32) (types.ExtentT, error) {
	result, err := f.find(n, hints, minSector)
	f.metrics.observeAllocator("find", err, len(f.entries), f.FreeSectors())
	if err != nil {
		return types.ExtentT{}, err
	}
	f.dirty = true
	f.debug().Uint32("requested", n).Stringer("result", result).Int("entries", len(f.entries)).Msg("allocated sectors")
	return result, nil
}

func (f *FreeSpace) find(n uint32, hints []types.ExtentT, minSector uint32) (types.ExtentT, error) {
	if n == 0 {
		return types.ExtentT{}, fmt.Errorf("failed to find free sectors: zero-length request: %w", types.ErrEmptyExtent)
	}
	if len(f.entries) == 0 {
		return types.ExtentT{}, fmt.Errorf("failed to find %d sectors: %w", n, types.ErrFreeListEmpty)
	}

	if result, ok := f.findContiguous(n, hints); ok {
		return result, nil
	}

	for {
		if result, ok := f.findExact(n, minSector); ok {
			return result, nil
		}
		result, ok, err := f.findSufficient(n, minSector)
		if err != nil {
			return types.ExtentT{}, err
		}
		if ok {
			return result, nil
		}
		if minSector == 0 {
			break
		}
		f.debug().Uint32("min_sector", minSector).Uint32("requested", n).Msg("nothing fits at or after min sector, retrying from anywhere")
		minSector = 0
	}

	return f.findLeastBad(n)
}

// findContiguous grows a file in place: the entry starting where a hint ends is clipped
func (f *FreeSpace) findContiguous(n uint32, hints []types.ExtentT) (types.ExtentT, bool) {
	for _, hint := range hints {
		if hint.IsZero() {
			break
		}
		next := hint.End()
		for i := range f.entries {
			entry := &f.entries[i]
			if entry.Start != next {
				continue
			}
			num := min(n, entry.Length)
			result := types.ExtentT{Start: entry.Start, Length: num}
			entry.Start += num
			entry.Length -= num
			if entry.Length == 0 {
				f.removeAt(i)
			}
			return result, true
		}
	}
	return types.ExtentT{}, false
}

func (f *FreeSpace) findExact(n uint32, minSector uint32) (types.ExtentT, bool) {
	for i, entry := range f.entries {
		if minSector != 0 && minSector >= entry.End() {
			continue
		}
		if entry.Length != n {
			continue
		}
		if minSector != 0 && minSector != entry.Start {
			continue
		}
		f.removeAt(i)
		return entry, true
	}
	return types.ExtentT{}, false
}

func (f *FreeSpace) findSufficient(n uint32, minSector uint32) (types.ExtentT, bool, error) {
	for i := range f.entries {
		entry := f.entries[i]
		if minSector != 0 && minSector >= entry.End() {
			continue
		}

		if minSector != 0 && minSector >= entry.Start {
			if entry.End()-minSector < n {
				continue
			}
			switch {
			case minSector == entry.Start:
				f.entries[i].Start += n
				f.entries[i].Length -= n
				if f.entries[i].Length == 0 {
					f.removeAt(i)
				}
			case minSector+n == entry.End():
				f.entries[i].Length -= n
			default:
				if len(f.entries) >= f.capacity {
					return types.ExtentT{}, false, fmt.Errorf("failed to carve %d sectors at 0x%08X from %s: %w", n, minSector, entry, types.ErrNoRoomToSplit)
				}
				tail := types.ExtentT{Start: minSector + n, Length: entry.End() - (minSector + n)}
				f.entries[i].Length = minSector - entry.Start
				f.insertAt(i+1, tail)
			}
			return types.ExtentT{Start: minSector, Length: n}, true, nil
		}

		if entry.Length >= n {
			f.entries[i].Start += n
			f.entries[i].Length -= n
			if f.entries[i].Length == 0 {
				f.removeAt(i)
			}
			return types.ExtentT{Start: entry.Start, Length: n}, true, nil
		}
	}
	return types.ExtentT{}, false, nil
}

// findLeastBad removes the entry coming closest to n sectors
func (f *FreeSpace) findLeastBad(n uint32) (types.ExtentT, error) {
	best := -1
	leastDiff := int64(leastBadLimit)
	for i, entry := range f.entries {
		if diff := int64(n) - int64(entry.Length); diff < leastDiff {
			leastDiff = diff
			best = i
		}
	}
	if best < 0 {
		return types.ExtentT{}, fmt.Errorf("failed to find %d sectors among %d free extents: %w", n, len(f.entries), types.ErrNoFit)
	}
	result := f.entries[best]
	f.removeAt(best)
	f.debug().Uint32("requested", n).Int64("short_by", leastDiff).Stringer("result", result).Msg("took closest free extent whole")
	return result, nil
}

// Free returns a run of sectors to the list, coalescing with touching neighbours
func (f *FreeSpace) Free(extent types.ExtentT) error {
	err := f.free(extent)
	f.metrics.observeAllocator("free", err, len(f.entries), f.FreeSectors())
	if err != nil {
		return err
	}
	f.dirty = true
	f.debug().Stringer("extent", extent).Int("entries", len(f.entries)).Msg("freed sectors")
	return nil
}

func (f *FreeSpace) free(extent types.ExtentT) error {
	if extent.Length == 0 {
		return fmt.Errorf("failed to free %s: %w", extent, types.ErrEmptyExtent)
	}
	if uint64(extent.Start)+uint64(extent.Length) > uint64(^uint32(0)) {
		return fmt.Errorf("%w: freed extent 0x%08X+%d wraps the sector space", types.ErrLogic, extent.Start, extent.Length)
	}
	end := extent.End()

	i := 0
	for ; i < len(f.entries); i++ {
		entry := &f.entries[i]
		if end < entry.Start {
			break
		}
		if end == entry.Start {
			entry.Start = extent.Start
			entry.Length += extent.Length
			if i > 0 && f.entries[i-1].End() == entry.Start {
				f.entries[i-1].Length += entry.Length
				f.removeAt(i)
			}
			return nil
		}
		if extent.Start == entry.End() {
			if i+1 < len(f.entries) && f.entries[i+1].Start < end {
				return fmt.Errorf("failed to free %s, next entry %s: %w", extent, f.entries[i+1], types.ErrOverlappingFree)
			}
			entry.Length += extent.Length
			if i+1 < len(f.entries) && f.entries[i+1].Start == end {
				entry.Length += f.entries[i+1].Length
				f.removeAt(i + 1)
			}
			return nil
		}
		if extent.Start > entry.End() {
			continue
		}
		return fmt.Errorf("failed to free %s, entry %d %s: %w", extent, i, *entry, types.ErrOverlappingFree)
	}

	if len(f.entries) >= f.capacity {
		return fmt.Errorf("failed to free %s: %d of %d entries used: %w", extent, len(f.entries), f.capacity, types.ErrFreeListFull)
	}
	f.insertAt(i, extent)
	return nil
}

func (f *FreeSpace) removeAt(i int) {
	f.entries = append(f.entries[:i], f.entries[i+1:]...)
}

func (f *FreeSpace) insertAt(i int, e types.ExtentT) {
	f.entries = append(f.entries, types.ExtentT{})
	copy(f.entries[i+1:], f.entries[i:])
	f.entries[i] = e
}
