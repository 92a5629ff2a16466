package fedrestriction

import "go.uber.org/fx"

var Module = fx.Module("integration.fedrestriction",
	fx.Provide(NewService),
)
