package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/ecolyon/ecolyon/internal/api/models"
	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
	"github.com/ecolyon/ecolyon/internal/snapshot"
)

// ErrAlreadyRunning is returned when a run is requested while another is in progress.
var ErrAlreadyRunning = errors.New("refresh already running")

// Refresh steps, as reported in RefreshError.
const (
	StepBreakdown  = "breakdown"
	StepCache      = "cache"
	StepStations   = "stations"
	StepSnapshot   = "snapshot"
	StepAirQuality = "air_quality"
)

// InfrastructureService is the aggregator the job revalidates.
type InfrastructureService interface {
	Catalogue() infrastructure.Catalogue
	Count(ctx context.Context, ep infrastructure.Endpoint) infrastructure.CountResult
	Aggregate(ctx context.Context) (*infrastructure.Breakdown, *infrastructure.StationList, error)
}

// AirQualityRefresher forces a fetch of the air quality index.
type AirQualityRefresher interface {
	RefreshIndex(ctx context.Context) error
}

// ResponseCache is where the job stores the responses served by the API.
type ResponseCache interface {
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// RefreshJob revalidates the data served by the API.
type RefreshJob struct {
	config RefreshConfig
	logger zerolog.Logger

	infrastructure InfrastructureService

	// Optional, nil if not configured
	airQuality AirQualityRefresher
	cache      ResponseCache
	snapshots  snapshot.Repository

	running atomic.Bool
	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	FailedRuns          int64
	DegradedRuns        int64
	SkippedRuns         int64
	CacheWrites         int64
	SnapshotsRecorded   int64
	AirQualityRefreshes int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	LastTotal       int
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config         RefreshConfig
	Logger         zerolog.Logger
	Infrastructure InfrastructureService
	AirQuality     AirQualityRefresher
	Cache          ResponseCache
	Snapshots      snapshot.Repository
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		config:         cfg.Config.withDefaults(),
		logger:         cfg.Logger,
		infrastructure: cfg.Infrastructure,
		airQuality:     cfg.AirQuality,
		cache:          cfg.Cache,
		snapshots:      cfg.Snapshots,
		metrics:        &RefreshMetrics{},
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Total       int
	Degraded    bool
	CacheWrites int
	SnapshotID  string
	Errors      []RefreshError
}

// RefreshError represents an error during one step of a run.
type RefreshError struct {
	Step  string
	Key   string
	Error string
}

// Failed reports whether any step failed.
func (r *RefreshResult) Failed() bool {
	return len(r.Errors) > 0
}

// Run executes one refresh. The breakdown and station listing are computed
// first in one fan-out; the cache, snapshot and air quality steps then run
// concurrently. Step failures are collected in the result. The returned
// error is set when the run was skipped or the breakdown itself failed under the strict policy.
func (j *RefreshJob) Run(ctx context.Context) (*RefreshResult, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.metrics.mu.Lock()
		j.metrics.SkippedRuns++
		j.metrics.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	defer j.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result := &RefreshResult{StartTime: time.Now()}
	var mu sync.Mutex
	fail := func(step, key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Errors = append(result.Errors, RefreshError{Step: step, Key: key, Error: err.Error()})
	}

	j.logger.Info().Msg("starting infrastructure refresh")

	bd, stations, runErr := j.infrastructure.Aggregate(ctx)
	if runErr != nil {
		fail(StepBreakdown, "", runErr)
	}
	if bd != nil {
		result.Total = bd.Total
		result.Degraded = bd.Degraded
	}

	var wg conc.WaitGroup
	if bd != nil {
		wg.Go(func() {
			writes := j.warmBreakdown(ctx, bd, fail)
			mu.Lock()
			result.CacheWrites += writes
			mu.Unlock()
		})

		if j.config.RecordSnapshots && j.snapshots != nil {
			wg.Go(func() {
				snap := snapshot.New(bd, result.StartTime)
				if err := j.snapshots.Save(ctx, snap); err != nil {
					fail(StepSnapshot, "", err)
					return
				}
				mu.Lock()
				result.SnapshotID = snap.ID
				mu.Unlock()
			})
		}
	}

	if j.cache != nil && stations != nil {
		wg.Go(func() {
			if j.warmStations(ctx, stations, fail) {
				mu.Lock()
				result.CacheWrites++
				mu.Unlock()
			}
		})
	}

	if j.config.RefreshAirQuality && j.airQuality != nil {
		wg.Go(func() {
			if err := j.airQuality.RefreshIndex(ctx); err != nil {
				fail(StepAirQuality, "", err)
				return
			}
			j.metrics.mu.Lock()
			j.metrics.AirQualityRefreshes++
			j.metrics.mu.Unlock()
		})
	}

	wg.Wait()

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed() {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("total", result.Total).
		Bool("degraded", result.Degraded).
		Int("cache_writes", result.CacheWrites).
		Int("errors", len(result.Errors)).
		Str("snapshot_id", result.SnapshotID).
		Msg("infrastructure refresh completed")

	if runErr != nil {
		return result, fmt.Errorf("refresh breakdown: %w", runErr)
	}
	return result, nil
}

// warmBreakdown stores the breakdown envelope, the total and each category
// count the way the API serves them. A degraded breakdown only warms the
// categories that were counted.
func (j *RefreshJob) warmBreakdown(ctx context.Context, bd *infrastructure.Breakdown, fail func(step, key string, err error)) int {
	if j.cache == nil {
		return 0
	}

	writes := 0
	set := func(key string, v any) {
		if err := j.cache.SetJSON(ctx, key, v, 0); err != nil {
			fail(StepCache, key, err)
			return
		}
		writes++
	}

	if !bd.Degraded {
		set(cache.InfrastructureBreakdownKey, models.NewInfrastructureResponse(bd))
	}

	for _, item := range bd.Items {
		if item.Error != "" {
			continue
		}
		set(cache.InfrastructureTypeKey(item.Key), models.TypeCountResponse{
			Success: true,
			Count:   item.Count,
			Type:    item.Key,
		})
	}

	return writes
}

func (j *RefreshJob) warmStations(ctx context.Context, list *infrastructure.StationList, fail func(step, key string, err error)) bool {
	if len(list.Failures) > 0 {
		for _, f := range list.Failures {
			fail(StepStations, f.Key, errors.New(f.Reason))
		}
		return false
	}

	if err := j.cache.SetJSON(ctx, cache.StationsKey, models.NewStationsResponse(list), 0); err != nil {
		fail(StepCache, cache.StationsKey, err)
		return false
	}
	return true
}

// HealthCheck counts the first catalogue endpoint to verify the geodata
// service is reachable.
func (j *RefreshJob) HealthCheck(ctx context.Context) error {
	endpoints := j.infrastructure.Catalogue().Endpoints
	if len(endpoints) == 0 {
		return errors.New("catalogue has no endpoints")
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result := j.infrastructure.Count(ctx, endpoints[0])
	if !result.OK() {
		return fmt.Errorf("health check %s: %w", result.Key, result.Err)
	}
	return nil
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	if result.Failed() {
		j.metrics.FailedRuns++
	}
	if result.Degraded {
		j.metrics.DegradedRuns++
	}
	if result.SnapshotID != "" {
		j.metrics.SnapshotsRecorded++
	}
	j.metrics.CacheWrites += int64(result.CacheWrites)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.LastTotal = result.Total
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		FailedRuns:          j.metrics.FailedRuns,
		DegradedRuns:        j.metrics.DegradedRuns,
		SkippedRuns:         j.metrics.SkippedRuns,
		CacheWrites:         j.metrics.CacheWrites,
		SnapshotsRecorded:   j.metrics.SnapshotsRecorded,
		AirQualityRefreshes: j.metrics.AirQualityRefreshes,
		LastRunAt:           j.metrics.LastRunAt,
		LastRunDuration:     j.metrics.LastRunDuration,
		LastTotal:           j.metrics.LastTotal,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":           m.TotalRuns,
		"failed_runs":          m.FailedRuns,
		"degraded_runs":        m.DegradedRuns,
		"skipped_runs":         m.SkippedRuns,
		"cache_writes":         m.CacheWrites,
		"snapshots_recorded":   m.SnapshotsRecorded,
		"airquality_refreshes": m.AirQualityRefreshes,
		"last_run_at":          m.LastRunAt,
		"last_run_duration":    m.LastRunDuration.String(),
		"last_total":           m.LastTotal,
	}
}
