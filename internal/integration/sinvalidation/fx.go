package sinvalidation

import "go.uber.org/fx"

var Module = fx.Module("integration.sinvalidation",
	fx.Provide(NewService),
)
