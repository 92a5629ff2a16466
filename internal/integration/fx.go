package integration

import "go.uber.org/fx"

var Module = fx.Module("integration",
	fx.Provide(NewOsFileStore),
	fx.Provide(NewInboundRunner),
)
