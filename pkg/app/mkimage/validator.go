package mkimage

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-agcfs/internal/types"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// MinSectors is the smallest volume that can hold the system files
const MinSectors = 16

// Validate validates a creation request
func (r *Request) Validate() error {
	if r.Output == "" {
		return app.NewError(app.ErrCodeInvalidInput, "output path is required", nil)
	}
	if r.Sectors < MinSectors {
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("volume needs at least %d sectors, got %d", MinSectors, r.Sectors), nil)
	}
	if r.ContentCopies < 0 || r.ContentCopies > types.MaxAlts {
		return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("content copies must be between 1 and %d", types.MaxAlts), nil)
	}
	if r.IndexSlots < 0 || r.FreeMapEntries < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "table sizes cannot be negative", nil)
	}
	if r.Source != "" {
		info, err := os.Stat(r.Source)
		if err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "source directory is not accessible", err)
		}
		if !info.IsDir() {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("%s is not a directory", r.Source), nil)
		}
	}
	if !r.Force {
		if _, err := os.Stat(r.Output); err == nil {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("%s already exists", r.Output), nil)
		}
	}
	return nil
}
