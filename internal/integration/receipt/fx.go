package receipt

import "go.uber.org/fx"

var Module = fx.Module("integration.receipt",
	fx.Provide(NewService),
)
