package cra

import "go.uber.org/fx"

var Module = fx.Module("integration.cra",
	fx.Provide(NewService),
)
