package verify

import (
	"fmt"
	"sort"
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

const allCopies = 1<<types.MaxAlts - 1

// Validate validates a verification request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}
	return nil
}

// Handle checks the redundancy of the home block, the free map against every sector the
// metadata references and the reachability of every file ID in use
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx.Log(fmt.Sprintf("Verifying %s", req.Target.String()))
	ctx.Progress("Opening volume...", 10)
	vol, err := app.OpenVolume(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	defer vol.Close()

	response := &Response{
		Image:     req.Target.Path,
		SessionID: vol.SessionID.String(),
		HomeBlock: homeCheck(vol.HomeBlockStatus()),
	}

	ctx.Progress("Checking free map...", 30)
	report, err := vol.VerifyFreeMap()
	if err != nil {
		return nil, app.WrapError("failed to verify free map", err)
	}
	response.FreeMap = freeMapCheck(report)

	ctx.Progress("Walking directory tree...", 60)
	response.Tree, err = treeCheck(ctx, vol.Volume)
	if err != nil {
		return nil, app.WrapError("failed to walk directory tree", err)
	}

	st, err := vol.Statfs()
	if err != nil {
		return nil, app.WrapError("failed to compute capacity", err)
	}
	response.Capacity = Capacity{
		BlockSize: st.BlockSize,
		Blocks:    st.Blocks,
		BFree:     st.BFree,
		BAvail:    st.BAvail,
		Files:     st.Files,
		FFree:     st.FFree,
	}

	response.Healthy = len(response.HomeBlock.Rejected) == 0 &&
		response.HomeBlock.Matching == fmt.Sprintf("%03b", allCopies) &&
		response.FreeMap.Consistent && len(response.Tree.Orphans) == 0
	response.ElapsedTime = time.Since(startTime)

	if !response.Healthy {
		ctx.Logger.Warn().Str("image", req.Target.Path).Bool("freemap_consistent", response.FreeMap.Consistent).
			Int("orphans", len(response.Tree.Orphans)).Int("rejected_home_copies", len(response.HomeBlock.Rejected)).
			Msg("volume has problems")
	}
	ctx.Progress("Complete", 100)
	return response, nil
}

func homeCheck(status services.HomeBlockStatus) HomeCheck {
	check := HomeCheck{
		Copy:     status.Copy,
		Valid:    fmt.Sprintf("%03b", status.Valid),
		Matching: fmt.Sprintf("%03b", status.Matching),
	}
	for i, err := range status.CopyErrors {
		if err != nil {
			check.Rejected = append(check.Rejected, fmt.Sprintf("copy %d: %v", i, err))
		}
	}
	return check
}

func freeMapCheck(report *services.FreeMapReport) FreeMapCheck {
	check := FreeMapCheck{
		Consistent:  report.Consistent(),
		UsedRuns:    len(report.Used),
		UsedSectors: types.TotalSectors(report.Used),
		Expected:    app.Extent{Start: report.Expected.Start, Length: report.Expected.Length},
		Merged:      app.ExtentsFrom(report.Merged),
	}
	for _, c := range report.Conflicts {
		check.Conflicts = append(check.Conflicts, Conflict{
			Owner:  c.Owner,
			Extent: app.Extent{Start: c.Extent.Start, Length: c.Extent.Length},
			Error:  c.Err.Error(),
		})
	}
	fids := make([]uint32, 0, len(report.Unreadable))
	for fid := range report.Unreadable {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })
	for _, fid := range fids {
		check.Unreadable = append(check.Unreadable, Unreadable{FileID: fid, Error: report.Unreadable[fid].Error()})
	}
	return check
}

// treeCheck walks from the root and reports in-use file IDs nothing links to
func treeCheck(ctx *app.Context, vol *services.Volume) (TreeCheck, error) {
	var check TreeCheck
	reached := make(map[uint32]bool)
	err := vol.Tree().Walk(types.RootDirFileID, func(node *services.Node, depth int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		reached[node.FileID] = true
		if node.IsDir() {
			check.Directories++
		} else {
			check.Files++
		}
		return nil
	})
	if err != nil {
		return check, err
	}

	for fid, slot := range vol.Index().Slots() {
		if uint32(fid) <= types.JournalFileID || slot.IsFree() {
			continue
		}
		if !reached[uint32(fid)] {
			check.Orphans = append(check.Orphans, uint32(fid))
		}
	}
	return check, nil
}
