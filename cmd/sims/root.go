package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the root command for the SIMS operator CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sims",
		Short:         "SIMS file exchange and e-cert worker",
		Long:          "Run the SIMS integration jobs, apply database migrations and inspect the job catalogue.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			fmt.Fprintln(cmd.OutOrStdout(), "\nTip: run 'sims jobs' to list the scheduled jobs.")
			return nil
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newJobsCmd())

	return rootCmd
}
