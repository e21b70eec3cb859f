package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ecolyon/ecolyon/internal/geodata/wfs"
)

const tracerName = "github.com/ecolyon/ecolyon/internal/infrastructure"

// FeatureSource is the geodata service the aggregator queries.
type FeatureSource interface {
	// Count returns the number of features of a dataset.
	Count(ctx context.Context, typeName string) (int, error)

	// GetFeatures returns the features matching a query.
	GetFeatures(ctx context.Context, q wfs.Query) (*wfs.FeatureCollection, error)
}

// RequestRecorder receives the duration and outcome of each upstream request.
type RequestRecorder interface {
	RecordRequest(provider, operation string, duration time.Duration, err error)
}

// ServiceConfig holds configuration for the aggregator.
type ServiceConfig struct {
	// Source is the geodata service.
	Source FeatureSource

	// Catalogue lists the datasets to count (default: DefaultCatalogue).
	Catalogue *Catalogue

	// Logger for aggregation events.
	Logger zerolog.Logger

	// MaxConcurrency bounds in-flight upstream requests per fan-out (default: 4).
	MaxConcurrency int

	// RequestTimeout bounds each upstream request (default: 15 seconds).
	RequestTimeout time.Duration

	// FailurePolicy decides how failed sub-fetches are reported (default: FailureAsZero).
	FailurePolicy FailurePolicy

	// Recorder receives upstream request metrics (optional).
	Recorder RequestRecorder
}

// Service aggregates infrastructure counts.
type Service struct {
	source         FeatureSource
	catalogue      Catalogue
	logger         zerolog.Logger
	maxConcurrency int
	requestTimeout time.Duration
	failurePolicy  FailurePolicy
	recorder       RequestRecorder
}

// NewService creates a new aggregator.
func NewService(cfg ServiceConfig) *Service {
	catalogue := DefaultCatalogue()
	if cfg.Catalogue != nil {
		catalogue = *cfg.Catalogue
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}

	failurePolicy := cfg.FailurePolicy
	if failurePolicy == "" {
		failurePolicy = FailureAsZero
	}

	return &Service{
		source:         cfg.Source,
		catalogue:      catalogue,
		logger:         cfg.Logger,
		maxConcurrency: maxConcurrency,
		requestTimeout: requestTimeout,
		failurePolicy:  failurePolicy,
		recorder:       cfg.Recorder,
	}
}

// Catalogue returns the catalogue the service counts.
func (s *Service) Catalogue() Catalogue {
	return s.catalogue
}

// Count returns the feature count of one catalogue endpoint. Failures are
// logged and reported in the result, never returned as a Go error.
func (s *Service) Count(ctx context.Context, ep Endpoint) CountResult {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	start := time.Now()
	count, err := s.source.Count(ctx, ep.TypeName)
	s.record("count", start, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("type", ep.Key).
			Str("typename", ep.TypeName).
			Msg("infrastructure count failed")
		return CountResult{Key: ep.Key, Name: ep.Name, Count: 0, Err: err}
	}

	return CountResult{Key: ep.Key, Name: ep.Name, Count: count}
}

// CountByKey counts the catalogue endpoint registered under key.
func (s *Service) CountByKey(ctx context.Context, key string) (CountResult, error) {
	if key == ChargingStationsKey {
		return s.ChargingStationsCount(ctx), nil
	}

	ep, ok := s.catalogue.Lookup(key)
	if !ok {
		return CountResult{Key: key}, fmt.Errorf("%w: %s", ErrUnknownType, key)
	}
	return s.Count(ctx, ep), nil
}

// StationList is the deduplicated charging-station listing.
type StationList struct {
	Stations []ChargingStation
	Failures []Failure
}

// Stations fetches charging points of every district and deduplicates them
// into physical stations. A failed district contributes no features.
func (s *Service) Stations(ctx context.Context) *StationList {
	features, failures := s.chargingFeatures(ctx)

	stations := DeduplicateStations(features, s.catalogue.Charging)
	SortStations(stations)

	return &StationList{Stations: stations, Failures: failures}
}

// ChargingStationsCount returns the number of distinct physical charging
// stations. Err is set when one or more districts failed; Count then covers
// the districts that answered.
func (s *Service) ChargingStationsCount(ctx context.Context) CountResult {
	features, failures := s.chargingFeatures(ctx)
	return s.chargingResult(CountDistinctStations(features), failures)
}

func (s *Service) chargingResult(count int, failures []Failure) CountResult {
	result := CountResult{
		Key:   ChargingStationsKey,
		Name:  s.catalogue.Charging.Name,
		Count: count,
	}

	if len(failures) > 0 {
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			errs = append(errs, fmt.Errorf("district %s: %s", f.Key, f.Reason))
		}
		result.Err = fmt.Errorf("%d of %d districts failed: %w",
			len(failures), len(s.catalogue.Charging.Districts), errors.Join(errs...))
	}

	return result
}

func (s *Service) chargingFeatures(ctx context.Context) ([]wfs.Feature, []Failure) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "infrastructure.chargingFeatures")
	defer span.End()

	dataset := s.catalogue.Charging
	perDistrict := make([][]wfs.Feature, len(dataset.Districts))
	errs := make([]error, len(dataset.Districts))

	p := pool.New().WithMaxGoroutines(s.maxConcurrency)
	for i, code := range dataset.Districts {
		p.Go(func() {
			perDistrict[i], errs[i] = s.fetchDistrict(ctx, dataset, code)
		})
	}
	p.Wait()

	var (
		features []wfs.Feature
		failures []Failure
	)
	for i, code := range dataset.Districts {
		if errs[i] != nil {
			failures = append(failures, Failure{Key: code, Name: dataset.Name, Reason: errs[i].Error()})
			continue
		}
		features = append(features, perDistrict[i]...)
	}

	span.SetAttributes(
		attribute.Int("features", len(features)),
		attribute.Int("failed_districts", len(failures)),
	)
	if len(failures) > 0 {
		span.SetStatus(codes.Error, "district fetch failed")
	}

	return features, failures
}

func (s *Service) fetchDistrict(ctx context.Context, dataset ChargingDataset, code string) ([]wfs.Feature, error) {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	start := time.Now()
	fc, err := s.source.GetFeatures(ctx, wfs.Query{
		TypeName:  dataset.TypeName,
		CQLFilter: dataset.DistrictFilter(code),
	})
	s.record("district_features", start, err)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("district", code).
			Msg("charging stations fetch failed")
		return nil, err
	}
	return fc.Features, nil
}

// Breakdown counts every catalogue endpoint and the charging stations
// concurrently and returns the categories sorted by count descending. Ties
// keep catalogue order with charging stations last. Under FailureStrict a
// breakdown with failures is returned together with ErrIncomplete.
func (s *Service) Breakdown(ctx context.Context) (*Breakdown, error) {
	bd, _, err := s.Aggregate(ctx)
	return bd, err
}

// Aggregate computes the breakdown and the charging-station listing from a
// single fan-out. The charging-station count of the breakdown is the length
// of the listing. Errors follow Breakdown.
func (s *Service) Aggregate(ctx context.Context) (*Breakdown, *StationList, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "infrastructure.Breakdown")
	defer span.End()

	start := time.Now()
	endpoints := s.catalogue.Endpoints
	results := make([]CountResult, len(endpoints)+1)
	var stations *StationList

	p := pool.New().WithMaxGoroutines(s.maxConcurrency + 1)
	for i, ep := range endpoints {
		p.Go(func() {
			results[i] = s.Count(ctx, ep)
		})
	}
	p.Go(func() {
		stations = s.Stations(ctx)
		results[len(endpoints)] = s.chargingResult(len(stations.Stations), stations.Failures)
	})
	p.Wait()

	descriptions := make(map[string]string, len(endpoints)+1)
	for _, ep := range endpoints {
		descriptions[ep.Key] = ep.Description
	}
	descriptions[ChargingStationsKey] = s.catalogue.Charging.Description

	bd := &Breakdown{Items: make([]BreakdownItem, 0, len(results))}
	for _, r := range results {
		item := BreakdownItem{
			Key:         r.Key,
			Name:        r.Name,
			Count:       r.Count,
			Description: descriptions[r.Key],
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
			bd.Failures = append(bd.Failures, Failure{Key: r.Key, Name: r.Name, Reason: r.Err.Error()})
		}
		bd.Items = append(bd.Items, item)
	}

	sort.SliceStable(bd.Items, func(i, j int) bool {
		return bd.Items[i].Count > bd.Items[j].Count
	})

	bd.Total = bd.Sum()
	bd.Degraded = len(bd.Failures) > 0

	span.SetAttributes(
		attribute.Int("total", bd.Total),
		attribute.Int("failures", len(bd.Failures)),
	)

	logEvent := s.logger.Info()
	if bd.Degraded {
		logEvent = s.logger.Warn()
	}
	logEvent.
		Int("total", bd.Total).
		Int("failures", len(bd.Failures)).
		Dur("duration", time.Since(start)).
		Msg("infrastructure breakdown computed")

	if bd.Degraded && s.failurePolicy == FailureStrict {
		span.SetStatus(codes.Error, ErrIncomplete.Error())
		return bd, stations, fmt.Errorf("%w: %d categories failed", ErrIncomplete, len(bd.Failures))
	}

	return bd, stations, nil
}

// TotalCount returns the sum of all breakdown categories.
func (s *Service) TotalCount(ctx context.Context) (int, error) {
	bd, err := s.Breakdown(ctx)
	if bd == nil {
		return 0, err
	}
	return bd.Total, err
}

func (s *Service) record(operation string, start time.Time, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordRequest(wfs.ProviderName, operation, time.Since(start), err)
}
