package joblock

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sims/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("joblock",
	fx.Provide(ProvideLocker),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// ProvideLocker returns nil when the scheduler lock is disabled or no
// redis address is configured.
func ProvideLocker(p Params) *Locker {
	addr := strings.TrimSpace(p.Config.RedisAddr)
	if !p.Config.Scheduler.JobLock {
		return nil
	}
	if addr == "" {
		p.Log.Warn("joblock.disabled", zap.String("reason", "REDIS_ADDR is empty"))
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: p.Config.RedisPassword,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return NewLocker(client)
}
