package overaward

import (
	"github.com/smallbiznis/sims/internal/overaward/service"
	"go.uber.org/fx"
)

var Module = fx.Module("overaward.service",
	fx.Provide(service.NewService),
)
