package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deploymenttheory/go-agcfs/internal/mount"
	"github.com/deploymenttheory/go-agcfs/internal/services"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

var (
	mountImage       imageFlags
	mountUID         uint32
	mountGID         uint32
	mountAttrTimeout time.Duration
	mountMetricsAddr string
	mountAllowOther  bool
	mountFsName      string
)

var mountCmd = &cobra.Command{
	Use:   "mount [image] [mountpoint]",
	Short: "Serve a volume read-only through FUSE",
	Long: `Mount a volume read-only at mountpoint and serve it until interrupted or
unmounted. Engine counters are exported for Prometheus when a metrics address
is configured.

Examples:
  agcfs mount disk.img /mnt/agc
  agcfs mount disk.img /mnt/agc --metrics-addr :9120 --trace fuse`,

	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMount(cmd, args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)

	mountImage.register(mountCmd)
	mountCmd.Flags().Uint32Var(&mountUID, "uid", uint32(os.Getuid()), "owner of every file")
	mountCmd.Flags().Uint32Var(&mountGID, "gid", uint32(os.Getgid()), "group of every file")
	mountCmd.Flags().DurationVar(&mountAttrTimeout, "attr-timeout", time.Second, "kernel entry and attribute cache time")
	mountCmd.Flags().StringVar(&mountMetricsAddr, "metrics-addr", "", "serve /metrics on this address, overrides the config file")
	mountCmd.Flags().BoolVar(&mountAllowOther, "allow-other", false, "let other users access the mount")
	mountCmd.Flags().StringVar(&mountFsName, "fs-name", "", "source name shown in the mount table")
}

func runMount(cmd *cobra.Command, imagePath, mountPoint string) error {
	ctx := newContext(cmd)

	metricsAddr := config.MetricsAddr
	if mountMetricsAddr != "" {
		metricsAddr = mountMetricsAddr
	}
	fsName := config.FsName
	if mountFsName != "" {
		fsName = mountFsName
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ctx.Metrics = services.NewMetrics(registry)

	// 1. Mount the volume
	vol, err := app.OpenVolume(ctx, mountImage.target(imagePath))
	if err != nil {
		return err
	}
	defer vol.Close()

	verbosity, _ := config.Verbosity()
	fs := mount.NewFileSystem(vol.Volume, mount.Options{
		UID:     mountUID,
		GID:     mountGID,
		Timeout: mountAttrTimeout,
		Logger:  &ctx.Logger,
		Verbose: verbosity,
	})

	// 2. Attach it to the kernel
	server, err := mount.Mount(fs, mountPoint, mount.ServerOptions{
		FsName:     fsName,
		AllowOther: mountAllowOther || config.AllowOther,
	})
	if err != nil {
		return app.NewError(app.ErrCodeImageAccess, "failed to mount volume", err)
	}

	// 3. Serve until interrupted or unmounted, with the metrics endpoint alongside
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(serveCtx)

	group.Go(func() error {
		defer cancel()
		return mount.Serve(groupCtx, server)
	})

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		httpServer := &http.Server{
			Addr:              metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			ctx.Logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil {
		return app.NewError(app.ErrCodeIO, "mount failed", err)
	}
	ctx.Logger.Info().Str("mount_point", mountPoint).Msg("volume unmounted")
	return nil
}
