package app

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/internal/services"
)

// OpenedVolume is a volume together with the image file backing it
type OpenedVolume struct {
	*services.Volume
	Device *disk.ImageDevice
}

// Close releases the image file
func (o *OpenedVolume) Close() error {
	return o.Device.Close()
}

// ImageConfig merges the loaded configuration with the per-command target
func (c *Context) ImageConfig(target ImageTarget) disk.Config {
	var cfg disk.Config
	if c.Config != nil {
		cfg = *c.Config
	} else {
		cfg.PartitionDetect = true
	}
	if target.NoPartitionDetect {
		cfg.PartitionDetect = false
	}
	if target.BaseSector != 0 {
		cfg.BaseSector = target.BaseSector
	}
	return cfg
}

// OpenVolume opens the image named by target read-only and mounts its volume
func OpenVolume(ctx *Context, target ImageTarget) (*OpenedVolume, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	cfg := ctx.ImageConfig(target)
	verbose, err := cfg.Verbosity()
	if err != nil {
		return nil, NewError(ErrCodeInvalidInput, "invalid verbose setting", err)
	}

	device, err := disk.OpenImage(target.Path, &cfg)
	if err != nil {
		return nil, NewError(ErrCodeImageAccess, fmt.Sprintf("failed to open %s", target.String()), err)
	}

	logger := ctx.Logger.With().Str("image", target.Path).Logger()
	vol, err := services.OpenVolume(device, services.VolumeOptions{
		Logger:         &logger,
		Verbose:        verbose,
		Metrics:        ctx.Metrics,
		HomeBlockRange: cfg.HomeBlockRange,
	})
	if err != nil {
		device.Close()
		return nil, WrapError("failed to open volume", err)
	}

	stats := device.GetStats()
	logger.Debug().Str("detection", stats.DetectionMethod).Int("partition", stats.PartitionIndex).
		Uint32("base_sector", device.BaseSector()).Uint32("sectors", device.Sectors()).Msg("image opened")
	return &OpenedVolume{Volume: vol, Device: device}, nil
}
