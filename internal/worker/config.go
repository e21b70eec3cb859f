// Package worker runs the scheduled revalidation of EcoLyon data: it
// recomputes the infrastructure breakdown, warms the response cache, records
// a snapshot and refreshes the air quality index.
package worker

import "time"

// RefreshConfig holds configuration for the refresh job.
type RefreshConfig struct {
	// Interval between scheduled runs.
	// Default: 1 hour
	Interval time.Duration

	// Timeout bounds a whole run.
	// Default: 2 minutes
	Timeout time.Duration

	// RunOnStart triggers a run as soon as the scheduler starts.
	// Default: true
	RunOnStart bool

	// RefreshAirQuality enables the air quality refresh step.
	// Default: true
	RefreshAirQuality bool

	// RecordSnapshots enables the snapshot step.
	// Default: true
	RecordSnapshots bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:          time.Hour,
		Timeout:           2 * time.Minute,
		RunOnStart:        true,
		RefreshAirQuality: true,
		RecordSnapshots:   true,
	}
}

func (c RefreshConfig) withDefaults() RefreshConfig {
	defaults := DefaultRefreshConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}
