package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/smallbiznis/sims/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>...",
		Short: "Run the named jobs once",
		Long:  "Run the named jobs once in the given order, ignoring the enabled job list.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			app := fx.New(
				worker.Module,
				fx.NopLogger,
				fx.Populate(&sched),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			runErr := sched.Run(ctx, args...)
			stopErr := app.Stop(context.WithoutCancel(ctx))
			return errors.Join(runErr, stopErr)
		},
	}
}
