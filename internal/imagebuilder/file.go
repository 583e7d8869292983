package imagebuilder

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
)

// CreateFile writes a new bare volume of the given size to path. populate adds the
// directories and files before the layout is written. The file is synced and closed.
func CreateFile(path string, sectors uint32, opts Options, populate func(*Builder) error) (err error) {
	device, err := disk.CreateImage(path, sectors)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := device.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close image: %w", cerr)
		}
	}()

	b, err := New(device, opts)
	if err != nil {
		return err
	}
	if populate != nil {
		if err := populate(b); err != nil {
			return err
		}
	}
	if err := b.Finish(); err != nil {
		return err
	}
	return device.Sync()
}
