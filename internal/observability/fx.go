package observability

import (
	"strings"

	"github.com/smallbiznis/sims/internal/config"
	"github.com/smallbiznis/sims/internal/observability/metrics"
	"github.com/smallbiznis/sims/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	telemetry.Module,
	fx.Provide(provideMetricsConfig),
	fx.Invoke(ensureTracingProvider),
	fx.Invoke(ensureMetrics),
)

func ensureTracingProvider(_ *sdktrace.TracerProvider) {}

func provideMetricsConfig(cfg config.Config) metrics.Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "sims"
	}
	return metrics.Config{
		ServiceName: serviceName,
		Environment: strings.TrimSpace(cfg.Environment),
	}
}

// ensureMetrics registers the collectors with their process labels before
// any job touches the unlabeled singletons.
func ensureMetrics(cfg metrics.Config) {
	metrics.SchedulerWithConfig(cfg)
	metrics.ECertWithConfig(cfg)
	metrics.IntegrationWithConfig(cfg)
}
