package loanbalance

import "go.uber.org/fx"

var Module = fx.Module("integration.loanbalance",
	fx.Provide(NewService),
)
