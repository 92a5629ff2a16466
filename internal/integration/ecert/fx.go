package ecert

import "go.uber.org/fx"

var Module = fx.Module("integration.ecert",
	fx.Provide(NewService),
)
