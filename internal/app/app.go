// Package app wires the services shared by the EcoLyon binaries from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ecolyon/ecolyon/internal/airquality"
	"github.com/ecolyon/ecolyon/internal/airquality/atmo"
	"github.com/ecolyon/ecolyon/internal/api/handler"
	"github.com/ecolyon/ecolyon/internal/api/middleware"
	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/config"
	"github.com/ecolyon/ecolyon/internal/database"
	"github.com/ecolyon/ecolyon/internal/geodata/wfs"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
	"github.com/ecolyon/ecolyon/internal/provider/resilience"
	"github.com/ecolyon/ecolyon/internal/snapshot"
)

// memorySnapshotCapacity bounds history kept without a database (a week of
// hourly runs).
const memorySnapshotCapacity = 168

// Options selects the optional dependencies a binary needs.
type Options struct {
	// Storage connects Redis and PostgreSQL when configured.
	Storage bool

	// Metrics records provider request metrics through OpenTelemetry.
	Metrics bool
}

// Services holds the wired services. Optional fields are nil when not
// configured.
type Services struct {
	Registry        *resilience.Registry
	ProviderMetrics *middleware.ProviderMetrics
	Infrastructure  *infrastructure.Service
	AirQuality      *airquality.Service
	Cache           *cache.Cache
	Pool            *pgxpool.Pool
	Snapshots       snapshot.Repository
}

// Build wires the services described by cfg.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*Services, error) {
	s := &Services{Registry: resilience.NewRegistry()}

	catalogue, err := cfg.Catalogue()
	if err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}

	if opts.Metrics {
		s.ProviderMetrics, err = middleware.NewProviderMetrics()
		if err != nil {
			return nil, fmt.Errorf("init provider metrics: %w", err)
		}
	}

	wfsClient := wfs.NewClient(wfs.ClientConfig{
		BaseURL:  cfg.WFSBaseURL,
		Registry: s.Registry,
		Timeout:  cfg.RequestTimeout,
	})

	infraCfg := infrastructure.ServiceConfig{
		Source:         wfsClient,
		Catalogue:      &catalogue,
		Logger:         log.With().Str("component", "infrastructure").Logger(),
		MaxConcurrency: cfg.MaxConcurrency,
		RequestTimeout: cfg.RequestTimeout,
		FailurePolicy:  cfg.FailurePolicy,
	}
	if s.ProviderMetrics != nil {
		infraCfg.Recorder = s.ProviderMetrics
	}
	s.Infrastructure = infrastructure.NewService(infraCfg)

	if cfg.ATMOAPIToken != "" {
		atmoClient := atmo.NewClient(atmo.ClientConfig{
			BaseURL:  cfg.ATMOBaseURL,
			APIToken: cfg.ATMOAPIToken,
			Registry: s.Registry,
		})
		s.AirQuality = airquality.NewService(airquality.ServiceConfig{
			Provider: atmoClient,
			Logger:   log.With().Str("component", "airquality").Logger(),
		})
	} else {
		log.Warn().Msg("ATMO_API_TOKEN not set, air quality disabled")
	}

	if !opts.Storage {
		return s, nil
	}

	if cfg.RedisAddress != "" {
		s.Cache, err = cache.Connect(ctx, cfg.CacheConfig())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		log.Info().Str("address", cfg.RedisAddress).Msg("response cache connected")
	}

	if cfg.Database.Enabled() {
		s.Pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect database: %w", err)
		}

		repo := snapshot.NewPostgresRepository(s.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure snapshot schema: %w", err)
		}
		s.Snapshots = repo
		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	} else {
		s.Snapshots = snapshot.NewInMemoryRepository(memorySnapshotCapacity)
		log.Warn().Msg("DB_HOST not set, snapshot history kept in memory")
	}

	return s, nil
}

// Dependencies returns the readiness checks of the connected stores.
func (s *Services) Dependencies() []handler.Dependency {
	var deps []handler.Dependency
	if s.Cache != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Pinger: s.Cache})
	}
	if s.Pool != nil {
		deps = append(deps, handler.Dependency{Name: "postgres", Pinger: s.Pool})
	}
	return deps
}

// Close releases the store connections.
func (s *Services) Close() error {
	var errs []error
	if s.Cache != nil {
		errs = append(errs, s.Cache.Close())
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	return errors.Join(errs...)
}
