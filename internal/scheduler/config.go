package scheduler

import (
	"time"

	"github.com/smallbiznis/sims/internal/config"
)

// Config controls the run loop and the per-job lock.
type Config struct {
	RunInterval time.Duration
	EnabledJobs []string
	JobLockTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 5 * time.Minute,
		JobLockTTL:  30 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval: cfg.Scheduler.Interval,
		EnabledJobs: cfg.Scheduler.EnabledJobs,
		JobLockTTL:  cfg.Scheduler.JobLockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobLockTTL <= 0 {
		c.JobLockTTL = defaults.JobLockTTL
	}
	return c
}
