package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/sims/internal/migration"
	"github.com/smallbiznis/sims/internal/seed"
	"github.com/smallbiznis/sims/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and system seed data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var conn *gorm.DB
			app := fx.New(
				worker.Infra,
				migration.Module,
				seed.Module,
				fx.NopLogger,
				fx.Populate(&conn),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer app.Stop(context.WithoutCancel(ctx))

			if conn.Dialector.Name() != "postgres" {
				fmt.Fprintf(cmd.OutOrStdout(), "schema synced (%s)\n", conn.Dialector.Name())
				return nil
			}
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			version, dirty, err := migration.Version(sqlDB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
}
