package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app/mkimage"
)

var (
	mkimageSectors    uint32
	mkimageFrom       string
	mkimageIndexSlots int
	mkimageFreeMap    int
	mkimageCopies     int
	mkimageTimestamp  uint32
	mkimageForce      bool
)

var mkimageCmd = &cobra.Command{
	Use:   "mkimage [output]",
	Short: "Create a new volume image",
	Long: `Create a bare volume image, optionally filled from a host directory. The
result is mounted again and its free map checked before the command returns.

Examples:
  agcfs mkimage blank.img --sectors 8192
  agcfs mkimage game.img --from ./romset --copies 2`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMkimage(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(mkimageCmd)

	mkimageCmd.Flags().Uint32Var(&mkimageSectors, "sectors", 4096, "volume size in 512 byte sectors")
	mkimageCmd.Flags().StringVar(&mkimageFrom, "from", "", "host directory copied into the root directory")
	mkimageCmd.Flags().IntVar(&mkimageIndexSlots, "index-slots", 0, "index.sys capacity in file IDs")
	mkimageCmd.Flags().IntVar(&mkimageFreeMap, "freemap-entries", 0, "freemap.sys capacity in extents")
	mkimageCmd.Flags().IntVar(&mkimageCopies, "copies", 1, "copies of each file's contents (1-3)")
	mkimageCmd.Flags().Uint32Var(&mkimageTimestamp, "timestamp", 0, "unix time stored on every record, 0 for now")
	mkimageCmd.Flags().BoolVarP(&mkimageForce, "force", "f", false, "replace an existing output file")
}

func runMkimage(cmd *cobra.Command, output string) error {
	ctx := newContext(cmd)

	request := &mkimage.Request{
		Output:         output,
		Sectors:        mkimageSectors,
		Source:         mkimageFrom,
		IndexSlots:     mkimageIndexSlots,
		FreeMapEntries: mkimageFreeMap,
		ContentCopies:  mkimageCopies,
		Timestamp:      mkimageTimestamp,
		Force:          mkimageForce,
	}

	response, err := mkimage.Handle(ctx, request)
	if err != nil {
		return err
	}
	return mkimage.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
