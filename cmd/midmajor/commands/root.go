package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "midmajor",
	Short: "Mid-major basketball stock market",
	Long: `Midmajor Unified CLI

A fantasy stock market for mid-major college basketball. Team prices are
derived daily from the kenpom.com efficiency ratings and reconciled into
the market database.

Usage:
  go run ./cmd/midmajor [command]

Examples:
  go run ./cmd/midmajor api
  go run ./cmd/midmajor update
  go run ./cmd/midmajor export --out history.csv`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
