package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
	"github.com/deploymenttheory/go-agcfs/pkg/app/verify"
)

var verifyImage imageFlags

var verifyCmd = &cobra.Command{
	Use:   "verify [image]",
	Short: "Check the consistency of a volume",
	Long: `Check that every home block copy agrees, that the free map and the sectors
referenced by the metadata partition the volume, and that every file ID in
use is reachable from the root directory. Exits non-zero when the volume has
problems.`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyImage.register(verifyCmd)
}

func runVerify(cmd *cobra.Command, imagePath string) error {
	ctx := newContext(cmd)

	response, err := verify.Handle(ctx, &verify.Request{Target: verifyImage.target(imagePath)})
	if err != nil {
		return err
	}
	if err := verify.FormatOutput(cmd.OutOrStdout(), response, ctx.OutputFormat); err != nil {
		return err
	}
	if !response.Healthy {
		return app.NewError(app.ErrCodeCorruption, "volume is not healthy", nil)
	}
	return nil
}
