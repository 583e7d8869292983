package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/internal/disk"
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

var (
	// Global output flags
	verbose      bool
	quiet        bool
	outputFormat string

	// Configuration and logging
	configFile string
	logLevel   string
	trace      string

	// Loaded before any command runs
	config *disk.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agcfs",
	Short: "Inspect, extract and mount AGC fsys arcade volumes",
	Long: `agcfs is a command-line tool for AGC fsys volumes, the redundant file
system of arcade game hard disks. It reads raw disk images, with or without a
partition table, and works from the volume metadata alone.

Commands:
  inspect     Dump home block, index, free map and directory records
  list        List a directory or the whole tree
  extract     Copy files or directories out of a volume
  verify      Check redundancy, free map consistency and reachability
  freemap     Simulate allocations against a free list
  mount       Serve a volume read-only through FUSE
  mkimage     Create a new volume image
  config      Print the effective configuration`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var common *app.CommonError
		if errors.As(err, &common) {
			fmt.Fprintf(os.Stderr, "Code: %s\n", common.Code)
		}
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default searches ./agcfs-config.yaml, $HOME/.agcfs, /etc/agcfs)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&trace, "trace", "", "engine trace categories, comma separated (home,index,free,unpack,lookup,fuse,...)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// setup loads the configuration and builds the logger shared by every command
func setup() error {
	cfg, err := disk.LoadConfig(configFile)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if trace != "" {
		cfg.Verbose = trace
	}
	if quiet {
		cfg.LogLevel = "error"
	}

	logger, err = app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	config = cfg
	return nil
}

// newContext creates the application context for a command run
func newContext(cmd *cobra.Command) *app.Context {
	ctx := app.NewContext()
	ctx.Context = cmd.Context()
	ctx.OutputFormat = outputFormat
	ctx.Verbose = verbose
	ctx.Quiet = quiet
	ctx.Logger = logger
	ctx.Config = config
	ctx.SetProgress(func(message string, percent int) {
		logger.Debug().Int("percent", percent).Msg(message)
	})
	return ctx
}

// Image selection flags shared by commands that open a volume
type imageFlags struct {
	baseSector        uint32
	noPartitionDetect bool
}

func (f *imageFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&f.baseSector, "base-sector", 0, "volume start in sectors, skipping partition detection")
	cmd.Flags().BoolVar(&f.noPartitionDetect, "bare", false, "treat the image as a bare volume")
	cmd.MarkFlagsMutuallyExclusive("base-sector", "bare")
}

func (f *imageFlags) target(path string) app.ImageTarget {
	return app.ImageTarget{
		Path:              path,
		BaseSector:        f.baseSector,
		NoPartitionDetect: f.noPartitionDetect,
	}
}
