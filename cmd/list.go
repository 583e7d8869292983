package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app/inspect"
)

var (
	listImage     imageFlags
	listRecursive bool
	listDepth     int
	listExtents   bool
)

var listCmd = &cobra.Command{
	Use:   "list [image] [path]",
	Short: "List a directory of a volume",
	Long: `List the entries of a directory, or with --recursive every file below it.

Examples:
  # Root directory
  agcfs list disk.img

  # Everything below /games
  agcfs list disk.img /games -r`,

	Aliases: []string{"ls"},
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "/"
		if len(args) == 2 {
			dir = args[1]
		}
		return runList(cmd, args[0], dir)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listImage.register(listCmd)
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "list the whole tree")
	listCmd.Flags().IntVar(&listDepth, "depth", 0, "maximum depth with --recursive, 0 for unlimited")
	listCmd.Flags().BoolVar(&listExtents, "extents", false, "include retrieval pointers")
}

func runList(cmd *cobra.Command, imagePath, dir string) error {
	ctx := newContext(cmd)

	section := inspect.SectionDir
	if listRecursive {
		section = inspect.SectionTree
	}
	request := &inspect.Request{
		Target:   listImage.target(imagePath),
		Sections: []string{section},
		Path:     dir,
		MaxDepth: listDepth,
		Extents:  listExtents,
	}

	response, err := inspect.Handle(ctx, request)
	if err != nil {
		return err
	}
	return inspect.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
