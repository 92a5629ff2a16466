package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/sims/internal/observability/metrics"
	"github.com/smallbiznis/sims/pkg/log/ctxlogger"
	"github.com/smallbiznis/sims/pkg/summary"
	"github.com/smallbiznis/sims/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type jobRun struct {
	job       string
	runID     string
	startedAt time.Time
	summary   *summary.Log
}

func (s *Scheduler) newJobRun(ctx context.Context, job string) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	ctx = ctxlogger.ContextWithJob(ctx, job)
	ctx = correlation.ContextWithCorrelationID(ctx, run.runID)
	run.summary = summary.New(s.logger(ctx), job)
	return ctx, run
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return ctxlogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun, err error) {
	fields := []zap.Field{
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("warning_count", run.summary.Count(summary.LevelWarning)),
		zap.Int("error_count", run.summary.Count(summary.LevelError)),
	}
	log := s.logger(ctx)
	if err != nil {
		fields = append(fields,
			zap.String("error_type", obsmetrics.ClassifyErrorType(err)),
			zap.Bool("retryable", obsmetrics.IsRetryable(err)),
			zap.Error(err),
		)
		log.Error("scheduler.job.finish", fields...)
		return
	}
	if run.summary.HasErrors() {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}
