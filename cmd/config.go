package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/satrx/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration satrx would run with, after defaults and
environment overrides are applied.

Examples:
  satrx config
  satrx config -c satrx.yaml
  SATRX_SOURCE_TYPE=udp satrx config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runConfig(cfg, cmd.OutOrStdout())
	},
}

func runConfig(cfg *config.Config, w io.Writer) error {
	out, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
