// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/satrx/internal/config"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "satrx",
	Short: "satrx - GEOSCAN satellite image downlink receiver",
	Long: `satrx reassembles JPEG images sent by GEOSCAN cubesats in fixed-size
chunks. Frames are read from a pcap capture, a hex frame dump or a live UDP
feed from the demodulator; every completed image is written to the output
directory.

Configuration is read from the file given with --config (root key "satrx:")
and can be overridden with SATRX_* environment variables.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and SATRX_* env when empty)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}
