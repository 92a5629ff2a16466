package disbursement

import (
	"github.com/smallbiznis/sims/internal/disbursement/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("disbursement.repository",
	fx.Provide(repository.Provide),
)
