package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file, AGCFS_* environment
variables and command-line overrides are applied.`,

	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" && !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", used)
		}
		if outputFormat == "json" {
			encoder := json.NewEncoder(w)
			encoder.SetIndent("", "  ")
			return encoder.Encode(config)
		}
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(config)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
