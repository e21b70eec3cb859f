// Package api provides the HTTP API for EcoLyon.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ecolyon/ecolyon/internal/airquality"
	"github.com/ecolyon/ecolyon/internal/api/handler"
	"github.com/ecolyon/ecolyon/internal/api/middleware"
	"github.com/ecolyon/ecolyon/internal/api/response"
	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/provider/resilience"
	"github.com/ecolyon/ecolyon/internal/snapshot"
)

// Cache windows of the public data routes, matching the website's
// revalidation period.
const (
	dataMaxAge      = time.Hour
	dataStale       = 24 * time.Hour
	airQualityAge   = 30 * time.Minute
	airQualityStale = 6 * time.Hour
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version         string
	BuildTime       string
	Logger          zerolog.Logger
	ServiceName     string
	Metrics         *middleware.Metrics
	ProviderMetrics *middleware.ProviderMetrics

	// Infrastructure is required.
	Infrastructure handler.InfrastructureService

	// AirQuality, Snapshots and Cache are optional; nil disables them.
	AirQuality *airquality.Service
	Snapshots  snapshot.Repository
	Cache      *cache.Cache

	Registry     *resilience.Registry
	Dependencies []handler.Dependency
	RequireTLS   bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ecolyon-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "resource not found")
	})

	infraCfg := handler.InfrastructureConfig{
		Service: cfg.Infrastructure,
		Logger:  cfg.Logger,
	}
	if cfg.Cache != nil {
		infraCfg.Cache = cfg.Cache
	}
	if cfg.ProviderMetrics != nil {
		infraCfg.Metrics = cfg.ProviderMetrics
	}

	var airQualityService handler.AirQualityService
	if cfg.AirQuality != nil {
		airQualityService = cfg.AirQuality
	}

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:      cfg.Version,
		BuildTime:    cfg.BuildTime,
		Registry:     cfg.Registry,
		Dependencies: cfg.Dependencies,
	})
	infraHandler := handler.NewInfrastructureHandler(infraCfg)
	airQualityHandler := handler.NewAirQualityHandler(airQualityService)
	historyHandler := handler.NewHistoryHandler(cfg.Snapshots)

	// One limiter per category, shared by /api and /v1.
	publicRateLimit := middleware.RateLimitByIP(middleware.PublicRateLimit)
	opsRateLimit := middleware.RateLimitByIP(middleware.OpsRateLimit)

	data := func(r chi.Router) {
		r.Use(publicRateLimit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(dataMaxAge, dataStale))
			r.Get("/infrastructure", infraHandler.GetBreakdown)
			r.Get("/infrastructure/total", infraHandler.GetTotal)
			r.Get("/infrastructure/{type}", infraHandler.GetTypeCount)
			r.Get("/stations", infraHandler.ListStations)
		})

		r.With(middleware.CacheControl(airQualityAge, airQualityStale)).
			Get("/air-quality", airQualityHandler.GetIndex)

		r.Get("/history", historyHandler.ListSnapshots)
		r.Get("/history/latest", historyHandler.GetLatest)
	}

	// Website routes
	r.Route("/api", func(r chi.Router) {
		r.Group(data)
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		r.Group(data)

		r.Route("/ops", func(r chi.Router) {
			r.Use(opsRateLimit)
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})
	})

	return r
}
