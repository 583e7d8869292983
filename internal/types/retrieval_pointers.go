package types

import "fmt"

// ExtentT is a retrieval pointer: a contiguous run of sectors.
// A zero/zero extent terminates a list.
type ExtentT struct {
	// The first sector of the run.
	Start uint32

	// The number of sectors in the run.
	Length uint32
}

// End returns the first sector past the run.
func (e ExtentT) End() uint32 {
	return e.Start + e.Length
}

// IsZero reports whether the extent is the list terminator.
func (e ExtentT) IsZero() bool {
	return e.Start == 0 || e.Length == 0
}

// Overlaps reports whether the two runs share at least one sector.
func (e ExtentT) Overlaps(o ExtentT) bool {
	return e.Start < o.End() && o.Start < e.End()
}

// String renders the extent the way the dump tools print it.
func (e ExtentT) String() string {
	if e.Length == 0 {
		return fmt.Sprintf("0x%08X-0x%08X (0)", e.Start, e.Start)
	}
	return fmt.Sprintf("0x%08X-0x%08X (%d)", e.Start, e.End()-1, e.Length)
}

// TrimExtents returns the prefix of list before the first terminator.
func TrimExtents(list []ExtentT) []ExtentT {
	for i, e := range list {
		if e.IsZero() {
			return list[:i]
		}
	}
	return list
}

// TotalSectors sums the lengths of the extents before the first terminator.
func TotalSectors(list []ExtentT) uint64 {
	var total uint64
	for _, e := range TrimExtents(list) {
		total += uint64(e.Length)
	}
	return total
}
