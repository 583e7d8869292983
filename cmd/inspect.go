package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app/inspect"
)

var (
	inspectImage    imageFlags
	inspectSections []string
	inspectPath     string
	inspectDepth    int
	inspectExtents  bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [image]",
	Short: "Dump the metadata records of a volume",
	Long: `Dump the home block, index.sys slots, free map and directory records of a
volume. Every record is read through its redundant copies.

Examples:
  # Home block, index and free map
  agcfs inspect disk.img

  # Retrieval pointers of one file
  agcfs inspect disk.img --section lookup --path /games/pac.bin --extents

  # Directory tree two levels deep as JSON
  agcfs inspect disk.img --section tree --depth 2 -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectImage.register(inspectCmd)
	inspectCmd.Flags().StringSliceVarP(&inspectSections, "section", "s", nil, "sections to dump (home,index,freemap,tree,dir,lookup)")
	inspectCmd.Flags().StringVarP(&inspectPath, "path", "p", "", "volume path for dir, lookup and tree")
	inspectCmd.Flags().IntVar(&inspectDepth, "depth", 0, "maximum tree depth, 0 for unlimited")
	inspectCmd.Flags().BoolVar(&inspectExtents, "extents", false, "include retrieval pointers")
}

func runInspect(cmd *cobra.Command, imagePath string) error {
	ctx := newContext(cmd)

	request := &inspect.Request{
		Target:   inspectImage.target(imagePath),
		Sections: inspectSections,
		Path:     inspectPath,
		MaxDepth: inspectDepth,
		Extents:  inspectExtents,
	}

	response, err := inspect.Handle(ctx, request)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
