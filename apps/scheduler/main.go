package main

import (
	"github.com/smallbiznis/sims/internal/migration"
	"github.com/smallbiznis/sims/internal/scheduler"
	"github.com/smallbiznis/sims/internal/seed"
	"github.com/smallbiznis/sims/internal/worker"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		worker.Module,
		migration.Module,
		seed.Module,

		// No server module!
		scheduler.Loop,
	)
	app.Run()
}
