package services

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

func ext(start, length uint32) types.ExtentT {
	return types.ExtentT{Start: start, Length: length}
}

func newTestFreeSpace(t *testing.T, capacity int, entries ...types.ExtentT) *FreeSpace {
	t.Helper()
	fs, err := NewFreeSpace(entries, capacity)
	require.NoError(t, err)
	return fs
}

func TestNewFreeSpaceCapacity(t *testing.T) {
	_, err := NewFreeSpace([]types.ExtentT{ext(1, 1), ext(3, 1)}, 1)
	assert.True(t, errors.Is(err, types.ErrCapacity))
}

func TestFindOrder(t *testing.T) {
	tests := []struct {
		name      string
		entries   []types.ExtentT
		capacity  int
		n         uint32
		hints     []types.ExtentT
		minSector uint32
		want      types.ExtentT
		wantList  []types.ExtentT
	}{
		{
			name:     "exact fit beats earlier larger entry",
			entries:  []types.ExtentT{ext(100, 10), ext(200, 5)},
			n:        5,
			want:     ext(200, 5),
			wantList: []types.ExtentT{ext(100, 10)},
		},
		{
			name:     "hint growth wins over exact fit",
			entries:  []types.ExtentT{ext(100, 3), ext(200, 5)},
			n:        3,
			hints:    []types.ExtentT{ext(190, 10)},
			want:     ext(200, 3),
			wantList: []types.ExtentT{ext(100, 3), ext(203, 2)},
		},
		{
			name:     "hint growth may undershoot",
			entries:  []types.ExtentT{ext(100, 50), ext(200, 5)},
			n:        8,
			hints:    []types.ExtentT{ext(190, 10)},
			want:     ext(200, 5),
			wantList: []types.ExtentT{ext(100, 50)},
		},
		{
			name:     "later hint used when earlier has no neighbour",
			entries:  []types.ExtentT{ext(100, 50), ext(200, 5)},
			n:        2,
			hints:    []types.ExtentT{ext(10, 5), ext(90, 10)},
			want:     ext(100, 2),
			wantList: []types.ExtentT{ext(102, 48), ext(200, 5)},
		},
		{
			name:     "zero hint ends the hint list",
			entries:  []types.ExtentT{ext(100, 50), ext(200, 5)},
			n:        5,
			hints:    []types.ExtentT{{}, ext(190, 10)},
			want:     ext(200, 5),
			wantList: []types.ExtentT{ext(100, 50)},
		},
		{
			name:     "first sufficient entry clipped at front",
			entries:  []types.ExtentT{ext(100, 3), ext(200, 50), ext(300, 50)},
			n:        10,
			want:     ext(200, 10),
			wantList: []types.ExtentT{ext(100, 3), ext(210, 40), ext(300, 50)},
		},
		{
			name:      "min sector at entry start clips front",
			entries:   []types.ExtentT{ext(1, 999)},
			n:         1,
			minSector: 1,
			want:      ext(1, 1),
			wantList:  []types.ExtentT{ext(2, 998)},
		},
		{
			name:      "min sector flush with end shrinks entry",
			entries:   []types.ExtentT{ext(1, 999)},
			n:         9,
			minSector: 991,
			want:      ext(991, 9),
			wantList:  []types.ExtentT{ext(1, 990)},
		},
		{
			name:      "min sector inside entry splits it",
			entries:   []types.ExtentT{ext(1, 999)},
			capacity:  4,
			n:         1,
			minSector: 342,
			want:      ext(342, 1),
			wantList:  []types.ExtentT{ext(1, 341), ext(343, 657)},
		},
		{
			name:      "exact fit must start at min sector",
			entries:   []types.ExtentT{ext(100, 5), ext(200, 50)},
			n:         5,
			minSector: 110,
			want:      ext(200, 5),
			wantList:  []types.ExtentT{ext(100, 5), ext(205, 45)},
		},
		{
			name:      "exact fit at min sector",
			entries:   []types.ExtentT{ext(100, 5), ext(200, 50)},
			n:         5,
			minSector: 100,
			want:      ext(100, 5),
			wantList:  []types.ExtentT{ext(200, 50)},
		},
		{
			name:      "nothing after min sector retries from anywhere",
			entries:   []types.ExtentT{ext(100, 10)},
			n:         5,
			minSector: 500,
			want:      ext(100, 5),
			wantList:  []types.ExtentT{ext(105, 5)},
		},
		{
			name:      "too little after min sector retries from anywhere",
			entries:   []types.ExtentT{ext(100, 10)},
			n:         5,
			minSector: 108,
			want:      ext(100, 5),
			wantList:  []types.ExtentT{ext(105, 5)},
		},
		{
			name:     "least bad takes largest short entry whole",
			entries:  []types.ExtentT{ext(100, 3), ext(200, 7), ext(300, 2)},
			n:        10,
			want:     ext(200, 7),
			wantList: []types.ExtentT{ext(100, 3), ext(300, 2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capacity := tt.capacity
			if capacity == 0 {
				capacity = 8
			}
			fs := newTestFreeSpace(t, capacity, tt.entries...)

			got, err := fs.Find(tt.n, tt.hints, tt.minSector)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantList, fs.Entries())
			assert.True(t, fs.Dirty())
		})
	}
}

func TestFindErrors(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		fs := newTestFreeSpace(t, 4)
		_, err := fs.Find(1, nil, 0)
		assert.True(t, errors.Is(err, types.ErrFreeListEmpty))
		assert.True(t, errors.Is(err, types.ErrCapacity))
		assert.False(t, fs.Dirty())
	})

	t.Run("zero request", func(t *testing.T) {
		fs := newTestFreeSpace(t, 4, ext(10, 10))
		_, err := fs.Find(0, nil, 0)
		assert.True(t, errors.Is(err, types.ErrLogic))
	})

	t.Run("no room to split", func(t *testing.T) {
		fs := newTestFreeSpace(t, 1, ext(1, 999))
		_, err := fs.Find(1, nil, 500)
		assert.True(t, errors.Is(err, types.ErrNoRoomToSplit))
		assert.True(t, errors.Is(err, types.ErrCapacity))
		assert.Equal(t, []types.ExtentT{ext(1, 999)}, fs.Entries(), "list untouched")
	})

	t.Run("every entry too far short", func(t *testing.T) {
		fs := newTestFreeSpace(t, 4, ext(10, 1))
		_, err := fs.Find(leastBadLimit+1, nil, 0)
		assert.True(t, errors.Is(err, types.ErrNoFit))
	})
}

func TestFree(t *testing.T) {
	tests := []struct {
		name     string
		entries  []types.ExtentT
		capacity int
		free     types.ExtentT
		wantList []types.ExtentT
		wantErr  error
	}{
		{
			name:     "into empty list",
			free:     ext(50, 5),
			wantList: []types.ExtentT{ext(50, 5)},
		},
		{
			name:     "grow entry leftward",
			entries:  []types.ExtentT{ext(100, 10)},
			free:     ext(90, 10),
			wantList: []types.ExtentT{ext(90, 20)},
		},
		{
			name:     "grow entry rightward",
			entries:  []types.ExtentT{ext(100, 10), ext(200, 10)},
			free:     ext(110, 5),
			wantList: []types.ExtentT{ext(100, 15), ext(200, 10)},
		},
		{
			name:     "bridge two entries",
			entries:  []types.ExtentT{ext(100, 10), ext(120, 10)},
			free:     ext(110, 10),
			wantList: []types.ExtentT{ext(100, 30)},
		},
		{
			name:     "insert before first",
			entries:  []types.ExtentT{ext(100, 10)},
			free:     ext(10, 5),
			wantList: []types.ExtentT{ext(10, 5), ext(100, 10)},
		},
		{
			name:     "insert between",
			entries:  []types.ExtentT{ext(100, 10), ext(200, 10)},
			free:     ext(150, 5),
			wantList: []types.ExtentT{ext(100, 10), ext(150, 5), ext(200, 10)},
		},
		{
			name:     "append after last",
			entries:  []types.ExtentT{ext(100, 10)},
			free:     ext(300, 5),
			wantList: []types.ExtentT{ext(100, 10), ext(300, 5)},
		},
		{
			name:    "double free",
			entries: []types.ExtentT{ext(100, 10)},
			free:    ext(100, 10),
			wantErr: types.ErrOverlappingFree,
		},
		{
			name:    "overlaps tail of entry",
			entries: []types.ExtentT{ext(100, 10)},
			free:    ext(105, 10),
			wantErr: types.ErrOverlappingFree,
		},
		{
			name:    "overlaps head of entry",
			entries: []types.ExtentT{ext(100, 10)},
			free:    ext(95, 10),
			wantErr: types.ErrOverlappingFree,
		},
		{
			name:    "rightward growth overlapping successor",
			entries: []types.ExtentT{ext(100, 10), ext(115, 10)},
			free:    ext(110, 10),
			wantErr: types.ErrOverlappingFree,
		},
		{
			name:    "zero length",
			entries: []types.ExtentT{ext(100, 10)},
			free:    ext(50, 0),
			wantErr: types.ErrEmptyExtent,
		},
		{
			name:     "no room to insert",
			entries:  []types.ExtentT{ext(100, 10)},
			capacity: 1,
			free:     ext(50, 5),
			wantErr:  types.ErrFreeListFull,
		},
		{
			name:     "coalescing needs no room",
			entries:  []types.ExtentT{ext(100, 10)},
			capacity: 1,
			free:     ext(110, 5),
			wantList: []types.ExtentT{ext(100, 15)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capacity := tt.capacity
			if capacity == 0 {
				capacity = 8
			}
			fs := newTestFreeSpace(t, capacity, tt.entries...)

			err := fs.Free(tt.free)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, tt.entries, nilIfEmpty(fs.Entries()), "list untouched on error")
				assert.False(t, fs.Dirty())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantList, fs.Entries())
			assert.True(t, fs.Dirty())
		})
	}
}

func nilIfEmpty(list []types.ExtentT) []types.ExtentT {
	if len(list) == 0 {
		return nil
	}
	return list
}

func TestDoubleFreeIsLogicError(t *testing.T) {
	fs := newTestFreeSpace(t, 8, ext(100, 10))

	got, err := fs.Find(4, nil, 0)
	require.NoError(t, err)
	require.NoError(t, fs.Free(got))

	err = fs.Free(got)
	assert.True(t, errors.Is(err, types.ErrLogic))
	assert.Equal(t, []types.ExtentT{ext(100, 10)}, fs.Entries())
}

func TestSampleFreeList(t *testing.T) {
	fs := newTestFreeSpace(t, 9, SampleFreeList()...)

	got, err := fs.Find(15, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, ext(0x1020, 15), got)

	got, err = fs.Find(1, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, ext(0x2400, 1), got)

	require.NoError(t, fs.Free(ext(0x2400, 1)))
	require.NoError(t, fs.Free(ext(0x1020, 15)))
	assert.Equal(t, SampleFreeList(), fs.Entries())
}

func TestCloneIsIndependent(t *testing.T) {
	fs := newTestFreeSpace(t, 4, ext(100, 10))
	clone := fs.Clone()

	_, err := clone.Find(5, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, []types.ExtentT{ext(100, 10)}, fs.Entries())
	assert.Equal(t, []types.ExtentT{ext(105, 5)}, clone.Entries())
	assert.Equal(t, 4, clone.Capacity())
}

func TestFreeSpaceMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	fs := newTestFreeSpace(t, 4, ext(100, 10), ext(200, 20))
	fs.SetMetrics(metrics)
	assert.Equal(t, float64(30), testutil.ToFloat64(metrics.FreeSectors))

	_, err := fs.Find(5, nil, 0)
	require.NoError(t, err)
	_, err = fs.Find(0, nil, 0)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AllocatorOpsTotal.WithLabelValues("find", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AllocatorOpsTotal.WithLabelValues("find", "error")))
	assert.Equal(t, float64(25), testutil.ToFloat64(metrics.FreeSectors))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.FreeListEntries))
}

// genFreeList builds a well-formed list from alternating gap and length values
func genFreeList(values []uint32) []types.ExtentT {
	var list []types.ExtentT
	next := uint32(1)
	for i := 0; i+1 < len(values); i += 2 {
		start := next + values[i]
		list = append(list, ext(start, values[i+1]))
		next = start + values[i+1]
	}
	return list
}

func checkWellFormed(list []types.ExtentT, capacity int) bool {
	if len(list) > capacity {
		return false
	}
	for i, e := range list {
		if e.Length == 0 || e.Start == 0 {
			return false
		}
		if i > 0 && e.Start <= list[i-1].End() {
			return false
		}
	}
	return true
}

func TestFreeSpaceProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	const capacity = 64

	properties.Property("find and free keep the list sorted, disjoint and merged", prop.ForAll(
		func(values []uint32, requests []uint32, minSectors []uint32) bool {
			fs, err := NewFreeSpace(genFreeList(values), capacity)
			if err != nil {
				return false
			}
			var taken []types.ExtentT
			for i, n := range requests {
				var minSector uint32
				if i < len(minSectors) {
					minSector = minSectors[i]
				}
				got, err := fs.Find(n, taken, minSector)
				if err == nil {
					taken = append(taken, got)
				}
				if !checkWellFormed(fs.Entries(), capacity) {
					return false
				}
				// Return every other allocation straight away
				if err == nil && i%2 == 1 {
					if fs.Free(got) != nil {
						return false
					}
					taken = taken[:len(taken)-1]
					if !checkWellFormed(fs.Entries(), capacity) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.UInt32Range(1, 40)),
		gen.SliceOfN(15, gen.UInt32Range(1, 60)),
		gen.SliceOf(gen.UInt32Range(0, 600)),
	))

	properties.Property("allocated plus free sectors is conserved and freeing restores the list", prop.ForAll(
		func(values []uint32, requests []uint32, minSectors []uint32) bool {
			original := genFreeList(values)
			fs, err := NewFreeSpace(original, capacity)
			if err != nil {
				return false
			}
			total := fs.FreeSectors()

			var taken []types.ExtentT
			var allocated uint64
			for i, n := range requests {
				var minSector uint32
				if i < len(minSectors) {
					minSector = minSectors[i]
				}
				got, err := fs.Find(n, nil, minSector)
				if err != nil {
					break
				}
				taken = append(taken, got)
				allocated += uint64(got.Length)
				if allocated+fs.FreeSectors() != total {
					return false
				}
			}

			// Free in reverse order of allocation
			for i := len(taken) - 1; i >= 0; i-- {
				if err := fs.Free(taken[i]); err != nil {
					return false
				}
			}
			got := fs.Entries()
			if len(got) != len(original) {
				return false
			}
			for i := range got {
				if got[i] != original[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(16, gen.UInt32Range(1, 40)),
		gen.SliceOfN(12, gen.UInt32Range(1, 60)),
		gen.SliceOf(gen.UInt32Range(0, 600)),
	))

	properties.TestingRun(t)
}
