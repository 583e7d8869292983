package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
	"github.com/deploymenttheory/go-agcfs/pkg/app/freemap"
)

var (
	freemapImage     imageFlags
	freemapImagePath string
	freemapCapacity  int
)

var freemapCmd = &cobra.Command{
	Use:   "freemap [operation...]",
	Short: "Simulate allocations against a free list",
	Long: `Run find and free operations against a free list and show how it changes.
The list is a built-in fragmented sample, or a copy of a volume's free map
with --image. The volume is never written.

Operations:
  find:N          allocate N sectors
  find:N@MIN      allocate N sectors at or after sector MIN
  free:START+LEN  return LEN sectors starting at START

Examples:
  agcfs freemap find:10 find:15 free:0x1000+10
  agcfs freemap --image disk.img find:0x800`,

	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFreemap(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(freemapCmd)

	freemapImage.register(freemapCmd)
	freemapCmd.Flags().StringVar(&freemapImagePath, "image", "", "use the free map of this image")
	freemapCmd.Flags().IntVar(&freemapCapacity, "capacity", 0, "entry capacity of the sample list")
	freemapCmd.MarkFlagsMutuallyExclusive("image", "capacity")
}

func runFreemap(cmd *cobra.Command, operations []string) error {
	ctx := newContext(cmd)

	var target app.ImageTarget
	if freemapImagePath != "" {
		target = freemapImage.target(freemapImagePath)
	}
	request := &freemap.Request{
		Target:     target,
		Capacity:   freemapCapacity,
		Operations: operations,
	}

	response, err := freemap.Handle(ctx, request)
	if err != nil {
		return err
	}
	return freemap.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
