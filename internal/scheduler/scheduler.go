package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/joblock"
	obsmetrics "github.com/smallbiznis/sims/internal/observability/metrics"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_job")
)

// JobFunc runs one job. Messages written to log end up in the job summary.
type JobFunc func(ctx context.Context, log *summary.Log) error

type Job struct {
	Name        string
	Description string
	Timeout     time.Duration
	Run         JobFunc
}

type jobLocker interface {
	TryLock(ctx context.Context, job string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, job, token string) error
}

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config Config          `optional:"true"`
	Locker *joblock.Locker `optional:"true"`
	Jobs   JobSet
}

type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	genID  *snowflake.Node
	clock  clock.Clock
	locker jobLocker
	tracer trace.Tracer
	jobs   []Job
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		genID:  p.GenID,
		clock:  p.Clock,
		tracer: otel.Tracer("github.com/smallbiznis/sims/internal/scheduler"),
		jobs:   p.Jobs.Jobs(),
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

// Jobs lists every registered job in run order.
func (s *Scheduler) Jobs() []Job {
	return append([]Job(nil), s.jobs...)
}

func (s *Scheduler) lookup(name string) (Job, bool) {
	for _, job := range s.jobs {
		if strings.EqualFold(job.Name, name) {
			return job, true
		}
	}
	return Job{}, false
}

func (s *Scheduler) runJob(parent context.Context, job Job) error {
	start := s.clock.Now()
	schedMetrics := obsmetrics.Scheduler()

	if s.locker != nil {
		token, ok, err := s.locker.TryLock(parent, job.Name, s.cfg.JobLockTTL)
		if err != nil {
			schedMetrics.IncJobError(job.Name, err)
			return fmt.Errorf("%s: lock: %w", job.Name, err)
		}
		if !ok {
			schedMetrics.IncJobSkipped(job.Name)
			s.log.Info("scheduler.job.skipped",
				zap.String("job", job.Name),
				zap.String("reason", obsmetrics.JobReasonLockHeld),
			)
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(parent), job.Name, token); err != nil {
				s.log.Warn("scheduler.job.unlock_failed", zap.String("job", job.Name), zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithTimeout(parent, job.Timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "scheduler."+job.Name, trace.WithAttributes(
		attribute.String("job", job.Name),
	))
	defer span.End()

	ctx, run := s.newJobRun(ctx, job.Name)
	span.SetAttributes(attribute.String("run_id", run.runID))
	s.logJobStart(ctx, run)
	schedMetrics.IncJobRun(job.Name)

	err := job.Run(ctx, run.summary)
	schedMetrics.ObserveJobDuration(job.Name, s.clock.Now().Sub(start))
	s.logJobFinish(ctx, run, err)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	// deadline is a soft timeout, the next run picks up the rest
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(job.Name)
	}
	schedMetrics.IncJobError(job.Name, err)
	if isTimeout {
		s.logger(ctx).Warn("scheduler.job.timeout",
			zap.Duration("timeout", job.Timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", job.Name, err)
}

// RunOnce runs every enabled job in order. A failing job does not stop
// the ones after it.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, job := range s.jobs {
		if parent.Err() != nil {
			return errors.Join(err, parent.Err())
		}
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job))
		}
	}
	return err
}

// Run runs the named jobs in the order given, regardless of EnabledJobs.
func (s *Scheduler) Run(parent context.Context, names ...string) error {
	selected := make([]Job, 0, len(names))
	for _, name := range names {
		job, ok := s.lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownJob, name)
		}
		selected = append(selected, job)
	}

	var err error
	for _, job := range selected {
		err = errors.Join(err, s.runJob(parent, job))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler.run.failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// empty means every job runs in this process
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
