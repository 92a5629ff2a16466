package ecert

import (
	"github.com/smallbiznis/sims/internal/ecert/repository"
	"github.com/smallbiznis/sims/internal/ecert/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ecert.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewProcessor),
)
