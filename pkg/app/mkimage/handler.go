package mkimage

import (
	"fmt"
	"time"

	"github.com/deploymenttheory/go-agcfs/internal/imagebuilder"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Handle writes a new bare volume and checks it by mounting it again
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}

	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = uint32(startTime.Unix())
	}
	opts := imagebuilder.Options{
		IndexSlots:     req.IndexSlots,
		FreeMapEntries: req.FreeMapEntries,
		ContentCopies:  req.ContentCopies,
		Timestamp:      timestamp,
		Logger:         &ctx.Logger,
	}
	if ctx.Config != nil {
		opts.HomeBlockRange = ctx.Config.HomeBlockRange
	}

	ctx.Log(fmt.Sprintf("Creating %s with %d sectors", req.Output, req.Sectors))
	ctx.Progress("Building volume...", 10)

	// 2. Lay out the volume
	response := &Response{
		Output:  req.Output,
		Sectors: req.Sectors,
		Bytes:   int64(req.Sectors) * types.BytesPerSector,
	}
	err := imagebuilder.CreateFile(req.Output, req.Sectors, opts, func(b *imagebuilder.Builder) error {
		if req.Source != "" {
			added, err := b.AddHostTree(types.RootDirFileID, req.Source)
			response.Added = added
			if err != nil {
				return err
			}
		}
		response.HomeBlocks = b.HomeBlockLBAs()
		response.FileIDs = b.Files()
		return nil
	})
	if err != nil {
		return nil, app.WrapError(fmt.Sprintf("failed to create %s", req.Output), err)
	}

	// 3. Mount the result and check the free map against the metadata
	ctx.Progress("Verifying volume...", 70)
	vol, err := app.OpenVolume(ctx, app.ImageTarget{Path: req.Output, NoPartitionDetect: true})
	if err != nil {
		return nil, err
	}
	defer vol.Close()

	report, err := vol.VerifyFreeMap()
	if err != nil {
		return nil, app.WrapError("failed to verify free map", err)
	}
	response.Consistent = report.Consistent()
	response.FreeSectors = vol.FreeSpace().FreeSectors()
	response.SessionID = vol.SessionID.String()
	response.ElapsedTime = time.Since(startTime)

	ctx.Progress("Complete", 100)
	ctx.Log(fmt.Sprintf("Created %s: %d entries added in %v", req.Output, response.Added, response.ElapsedTime))
	return response, nil
}
