package services

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// SampleFreeList returns the fragmented free list used to exercise the allocator
func SampleFreeList() []types.ExtentT {
	return []types.ExtentT{
		{Start: 0x1000, Length: 10},
		{Start: 0x1020, Length: 20},
		{Start: 0x1100, Length: 100},
		{Start: 0x1300, Length: 1000},
		{Start: 0x2400, Length: 1},
		{Start: 0x2500, Length: 5},
		{Start: 0x3000, Length: 10000},
	}
}

// AllocateRun calls Find until n sectors have been handed out, asking each time for the
// sectors still missing. Each extent obtained becomes a hint for the next call, so a run
// that can grow in place does. On failure the extents obtained so far are returned to the
// free list.
func AllocateRun(f *FreeSpace, n uint32, hints []types.ExtentT, minSector uint32) ([]types.ExtentT, error) {
	var run []types.ExtentT
	remaining := n
	for remaining > 0 {
		// Hints are tried most recent first
		tried := make([]types.ExtentT, 0, len(run)+len(hints))
		for i := len(run) - 1; i >= 0; i-- {
			tried = append(tried, run[i])
		}
		tried = append(tried, hints...)

		got, err := f.Find(remaining, tried, minSector)
		if err != nil {
			for _, e := range run {
				_ = f.Free(e)
			}
			return nil, fmt.Errorf("failed to allocate %d of %d sectors: %w", remaining, n, err)
		}
		if got.Length > remaining {
			return nil, fmt.Errorf("%w: allocator returned %d sectors for a request of %d", types.ErrLogic, got.Length, remaining)
		}
		if len(run) > 0 && run[len(run)-1].End() == got.Start {
			run[len(run)-1].Length += got.Length
		} else {
			run = append(run, got)
		}
		remaining -= got.Length
	}
	return run, nil
}
