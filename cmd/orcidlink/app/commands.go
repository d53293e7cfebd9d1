// Package app provides the entry point for the orcidlink command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbase/orcidlink/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "orcidlink",
	DisableAutoGenTag: true,
	Short:             "orcidlink links KBase accounts to ORCID accounts",
	Long: `orcidlink is the KBase ORCID Link service. It walks users through the
OAuth authorization flow at ORCID and maintains the resulting link records,
keeping the stored token grants fresh for the services that consume them.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the orcidlink CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}
