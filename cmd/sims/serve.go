package main

import (
	"github.com/smallbiznis/sims/internal/migration"
	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/smallbiznis/sims/internal/seed"
	"github.com/smallbiznis/sims/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler loop until interrupted",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fx.New(
				worker.Module,
				migration.Module,
				seed.Module,
				scheduler.Loop,
			).Run()
		},
	}
}
