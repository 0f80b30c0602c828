package scheduler

import (
	"time"

	"github.com/smallbiznis/coursepay/internal/config"
)

// Config controls worker intervals and job selection.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
	// EnabledJobs limits the run to the named jobs. Empty means all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		JobTimeout:  30 * time.Second,
		LockTTL:     45 * time.Second,
	}
}

// ProvideConfig derives the worker cadence from the reconciler tunables.
func ProvideConfig(tunables *config.ReconcilerConfigHolder) Config {
	cfg := DefaultConfig()
	if tunables != nil {
		cfg.RunInterval = tunables.Get().RevalidateInterval
	}
	return cfg
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = c.JobTimeout + 15*time.Second
	}
	return c
}
