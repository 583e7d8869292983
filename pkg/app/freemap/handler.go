package freemap

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Handle runs the requested operations against a free list. Failing operations are
// recorded and the simulation continues.
func Handle(ctx *app.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	free, source, err := loadFreeList(ctx, req)
	if err != nil {
		return nil, err
	}
	if ctx.Verbose {
		free.SetLogger(ctx.Logger, types.VerboseFree)
	}
	free.SetMetrics(ctx.Metrics)

	response := &Response{
		Source:   source,
		Capacity: free.Capacity(),
		Initial:  app.ExtentsFrom(free.Entries()),
	}

	for i, op := range req.parsed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := Step{Operation: req.Operations[i]}
		switch op.Kind {
		case OpFind:
			run, err := services.AllocateRun(free, op.Count, nil, op.MinSector)
			if err != nil {
				step.Code = app.ClassifyError(err)
				step.Error = err.Error()
			}
			step.Allocated = app.ExtentsFrom(run)
		case OpFree:
			if err := free.Free(op.Extent); err != nil {
				step.Code = app.ClassifyError(err)
				step.Error = err.Error()
			}
		}
		step.Entries = free.Len()
		step.FreeSectors = free.FreeSectors()
		response.Steps = append(response.Steps, step)
		ctx.Progress(fmt.Sprintf("Ran %s", step.Operation), (i+1)*100/len(req.parsed))
	}

	response.Final = app.ExtentsFrom(free.Entries())
	response.FreeSectors = free.FreeSectors()
	return response, nil
}

func loadFreeList(ctx *app.Context, req *Request) (*services.FreeSpace, string, error) {
	if req.Target.Path == "" {
		capacity := req.Capacity
		if capacity == 0 {
			capacity = SampleCapacity
		}
		free, err := services.NewFreeSpace(services.SampleFreeList(), capacity)
		if err != nil {
			return nil, "", app.WrapError("failed to load the sample free list", err)
		}
		return free, "sample", nil
	}

	vol, err := app.OpenVolume(ctx, req.Target)
	if err != nil {
		return nil, "", err
	}
	defer vol.Close()
	return vol.FreeSpace().Clone(), req.Target.Path, nil
}
