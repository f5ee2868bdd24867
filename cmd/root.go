// Package cmd wires the command-line interface for the support-chat backend.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "support-chat",
	Short: "Customer support chat backend for the Azamon store",
	Long: `support-chat is the HTTP backend behind the Azamon customer support
widget. It persists conversations in PostgreSQL and answers customer
messages with a Gemini-backed support agent.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
