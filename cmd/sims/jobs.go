package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List the jobs the scheduler knows about",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs := scheduler.ProvideJobSet(scheduler.JobParams{}).Jobs()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTIMEOUT\tDESCRIPTION")
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", job.Name, job.Timeout, job.Description)
			}
			return w.Flush()
		},
	}
}
