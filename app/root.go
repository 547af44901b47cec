// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalforge",
	Short: "EvalForge is the authorization engine of the performance evaluation backend",
	Long: `EvalForge resolves who a caller is and what they may touch: it loads the
permission catalog, role capability sets and viewer visibility grants per
organization and serves the admin API for editing them.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
