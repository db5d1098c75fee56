// Package worker provides background job processing for NutriPlan.
package worker

import (
	"time"
)

// JobsConfig holds configuration for the background jobs.
type JobsConfig struct {
	// Concurrency is the number of plans regenerated in parallel.
	// Default: 3
	Concurrency int

	// Timeout bounds each user's plan regeneration.
	// Default: 30 seconds
	Timeout time.Duration

	// Kinds are the record kinds the index backfill reconciles.
	// Default: user, condition
	Kinds []string
}

// DefaultJobsConfig returns the default jobs configuration.
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		Concurrency: 3,
		Timeout:     30 * time.Second,
		Kinds:       []string{"user", "condition"},
	}
}

func (c JobsConfig) withDefaults() JobsConfig {
	defaults := DefaultJobsConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if len(c.Kinds) == 0 {
		c.Kinds = defaults.Kinds
	}
	return c
}
