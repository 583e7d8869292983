package services

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/types"
)

// StatfsBlockSize is the block size reported by Statfs
const StatfsBlockSize = 4096

// StatfsResult reports volume capacity in StatfsBlockSize blocks and index slots
type StatfsResult struct {
	BlockSize uint32
	Blocks    uint64
	BFree     uint64
	BAvail    uint64
	Files     uint64
	FFree     uint64
	NameMax   uint32
}

// Statfs summarizes the capacity of the volume. Available blocks exclude the sector 0
// block and the contents of the index, free map and root directory.
func (v *Volume) Statfs() (StatfsResult, error) {
	blocks := uint64(v.home.MaxLBA) * types.BytesPerSector / StatfsBlockSize

	var systemBytes uint64
	for fid := types.IndexFileID; fid <= types.RootDirFileID; fid++ {
		node, err := v.tree.Node(fid)
		if err != nil {
			return StatfsResult{}, fmt.Errorf("failed to stat volume: %w", err)
		}
		if err := v.tree.ensureHeader(node); err != nil {
			return StatfsResult{}, fmt.Errorf("failed to stat volume: %w", err)
		}
		systemBytes += uint64(node.Header.Size)
	}
	reserved := 1 + (systemBytes+StatfsBlockSize-1)/StatfsBlockSize

	result := StatfsResult{
		BlockSize: StatfsBlockSize,
		Blocks:    blocks,
		BFree:     v.freeSpace.FreeSectors() * types.BytesPerSector / StatfsBlockSize,
		Files:     uint64(v.index.Capacity()),
		FFree:     uint64(v.index.Capacity() - v.index.Used()),
		NameMax:   types.MaxFilenameLen,
	}
	if blocks > reserved {
		result.BAvail = blocks - reserved
	}
	result.BAvail = min(result.BAvail, result.BFree)
	return result, nil
}

// FreeMapConflict is a sector run claimed twice, or claimed and also marked free
type FreeMapConflict struct {
	Owner  string
	Extent types.ExtentT
	Err    error
}

// FreeMapReport is the outcome of VerifyFreeMap
type FreeMapReport struct {
	// Used lists the sectors referenced by home blocks, headers and file contents
	Used []types.ExtentT

	// Merged is the free list with every used run freed back into it
	Merged []types.ExtentT

	// Expected is the single entry Merged must reduce to
	Expected types.ExtentT

	// Conflicts lists overlapping claims
	Conflicts []FreeMapConflict

	// Unreadable maps file IDs whose header could not be loaded to the error
	Unreadable map[uint32]error
}

// Consistent reports whether every sector of the volume is either used once or free
func (r *FreeMapReport) Consistent() bool {
	return len(r.Conflicts) == 0 && len(r.Unreadable) == 0 &&
		len(r.Merged) == 1 && r.Merged[0] == r.Expected
}

// VerifyFreeMap checks that the free list and the sectors referenced by the volume's
// metadata exactly partition sectors 1 through max_lba-1
func (v *Volume) VerifyFreeMap() (*FreeMapReport, error) {
	report := &FreeMapReport{
		Expected:   types.ExtentT{Start: 1, Length: v.home.MaxLBA - 1},
		Unreadable: make(map[uint32]error),
	}

	used := v.index.Used()
	usedCapacity := types.MaxAlts + used*types.MaxAlts*(1+types.MaxFileHeaderPtrs)
	scratch, err := NewFreeSpace(nil, usedCapacity)
	if err != nil {
		return nil, err
	}
	claim := func(owner string, e types.ExtentT) {
		if err := scratch.Free(e); err != nil {
			report.Conflicts = append(report.Conflicts, FreeMapConflict{Owner: owner, Extent: e, Err: err})
			v.logger.Warn().Err(err).Str("owner", owner).Stringer("extent", e).Msg("sectors claimed twice")
		}
	}

	for i, lba := range v.homeStatus.LBAs {
		claim(fmt.Sprintf("home block copy %d", i), types.ExtentT{Start: lba, Length: 1})
	}

	for fid, slot := range v.index.Slots() {
		if slot.IsFree() {
			continue
		}
		id := uint32(fid)
		for alt, lba := range slot {
			claim(fmt.Sprintf("fid %d header copy %d", id, alt), types.ExtentT{Start: lba, Length: 1})
		}

		header, err := v.ResolveHeader(id, 0)
		if err != nil {
			report.Unreadable[id] = err
			v.logger.Warn().Err(err).Uint32("fid", id).Msg("header unreadable during free map verification")
			continue
		}
		for alt := 0; alt < types.MaxAlts; alt++ {
			for n, e := range header.Extents(alt) {
				claim(fmt.Sprintf("fid %d copy %d extent %d", id, alt, n), e)
			}
		}
	}
	report.Used = scratch.Entries()

	merged, err := NewFreeSpace(v.freeSpace.Entries(), v.freeSpace.Capacity()+len(report.Used))
	if err != nil {
		return nil, err
	}
	for _, e := range report.Used {
		if err := merged.Free(e); err != nil {
			report.Conflicts = append(report.Conflicts, FreeMapConflict{Owner: "free list", Extent: e, Err: err})
			v.logger.Warn().Err(err).Stringer("extent", e).Msg("used sectors also on free list")
		}
	}
	report.Merged = merged.Entries()

	if v.verbose.Has(types.VerboseVerifyFreeMap) {
		v.logger.Debug().Int("used_entries", len(report.Used)).Int("merged_entries", len(report.Merged)).
			Int("conflicts", len(report.Conflicts)).Bool("consistent", report.Consistent()).Msg("free map verified")
	}
	return report, nil
}
