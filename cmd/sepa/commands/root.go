package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sepa",
	Short: "sepa - daily breakout screener",
	Long: `sepa Unified CLI

Daily Minervini-style breakout screener: universe acquisition, trend /
relative-strength / pivot filtering, risk-based position sizing and a
WhatsApp report.

Usage:
  go run ./cmd/sepa [command]

Examples:
  go run ./cmd/sepa serve
  go run ./cmd/sepa scan
  go run ./cmd/sepa scan --notify`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
