package msfaa

import "go.uber.org/fx"

var Module = fx.Module("integration.msfaa",
	fx.Provide(NewService),
)
