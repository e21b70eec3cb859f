package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler runs the refresh job on a fixed interval.
type Scheduler struct {
	job        *RefreshJob
	interval   time.Duration
	runOnStart bool
	logger     zerolog.Logger
}

// NewScheduler creates a scheduler for job using the job's interval.
func NewScheduler(job *RefreshJob, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		job:        job,
		interval:   job.config.Interval,
		runOnStart: job.config.RunOnStart,
		logger:     logger,
	}
}

// Start runs the job until ctx is cancelled. It returns ctx.Err().
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("starting refresh scheduler")

	if s.runOnStart {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("refresh scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	_, err := s.job.Run(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.logger.Debug().Msg("refresh skipped, previous run still in progress")
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled refresh failed")
	}
}
