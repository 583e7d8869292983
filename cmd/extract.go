package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app/extract"
)

var (
	extractImage           imageFlags
	extractRecursive       bool
	extractOverwrite       bool
	extractContinueOnError bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [image] [source] [destination]",
	Short: "Copy files or directories out of a volume",
	Long: `Copy a file, or with --recursive a directory tree, from a volume to the host.
Contents are read through the file's retrieval pointers; modification times
are preserved.

Examples:
  # One file into the current directory
  agcfs extract disk.img /games/pac.bin .

  # A whole directory, skipping unreadable files
  agcfs extract disk.img /games ./games -r --continue-on-error`,

	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd, args[0], args[1], args[2])
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractImage.register(extractCmd)
	extractCmd.Flags().BoolVarP(&extractRecursive, "recursive", "r", false, "extract directories recursively")
	extractCmd.Flags().BoolVar(&extractOverwrite, "overwrite", false, "replace existing host files")
	extractCmd.Flags().BoolVar(&extractContinueOnError, "continue-on-error", false, "record unreadable files and keep going")
}

func runExtract(cmd *cobra.Command, imagePath, source, destination string) error {
	ctx := newContext(cmd)

	request := &extract.Request{
		Target:          extractImage.target(imagePath),
		Source:          source,
		Destination:     destination,
		Recursive:       extractRecursive,
		Overwrite:       extractOverwrite,
		ContinueOnError: extractContinueOnError,
	}

	response, err := extract.Handle(ctx, request)
	if err != nil {
		return err
	}
	return extract.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat)
}
