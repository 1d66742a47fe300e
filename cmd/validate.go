package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/satrx/internal/config"
	"firestige.xyz/satrx/internal/source"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without opening any input.

The file may be given as an argument or with --config. Source options are
checked against the selected source type.

Examples:
  satrx validate satrx.yaml
  satrx validate -c satrx.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no configuration file given")
		}
		return runValidate(path, cmd.OutOrStdout())
	},
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}
	if err := source.Check(cfg.Source); err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	fmt.Fprintf(w, "VALID: source %s, output %s/*%s, base offset %d\n",
		cfg.Source.Type, cfg.Output.Dir, cfg.Output.Extension, cfg.Receiver.BaseOffset)
	return nil
}
