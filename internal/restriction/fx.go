package restriction

import (
	"github.com/smallbiznis/sims/internal/restriction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restriction.service",
	fx.Provide(service.NewService),
)
