// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/database"
	"github.com/ecolyon/ecolyon/internal/geodata/wfs"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

// Config is the configuration shared by the API, the worker and the CLI.
type Config struct {
	Port        string
	Environment string

	WFSBaseURL     string
	MaxConcurrency int
	RequestTimeout time.Duration
	FailurePolicy  infrastructure.FailurePolicy
	CatalogueFile  string

	ATMOBaseURL  string
	ATMOAPIToken string

	// RedisAddress empty disables the response cache.
	RedisAddress  string
	RedisPassword string
	RedisDatabase int
	CacheTTL      time.Duration

	Database database.Config

	WorkerInterval     time.Duration
	PubSubProjectID    string
	PubSubSubscription string

	OTELEnabled  bool
	OTLPEndpoint string
}

// Load reads the configuration. Invalid values are reported together.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		WFSBaseURL:         getEnvOrDefault("WFS_BASE_URL", wfs.DefaultBaseURL),
		CatalogueFile:      os.Getenv("ECOLYON_CATALOGUE_FILE"),
		ATMOBaseURL:        os.Getenv("ATMO_BASE_URL"),
		ATMOAPIToken:       os.Getenv("ATMO_API_TOKEN"),
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		Database:           database.ConfigFromEnv(),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		OTELEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	cfg.MaxConcurrency = intEnv("AGGREGATOR_MAX_CONCURRENCY", 4, &errs)
	cfg.RequestTimeout = durationEnv("AGGREGATOR_REQUEST_TIMEOUT", 15*time.Second, &errs)
	cfg.RedisDatabase = intEnv("REDIS_DATABASE", 0, &errs)
	cfg.CacheTTL = durationEnv("CACHE_TTL", cache.DefaultTTL, &errs)
	cfg.WorkerInterval = durationEnv("WORKER_INTERVAL", time.Hour, &errs)

	policy, err := infrastructure.ParseFailurePolicy(os.Getenv("AGGREGATOR_FAILURE_POLICY"))
	if err != nil {
		errs = append(errs, fmt.Errorf("AGGREGATOR_FAILURE_POLICY: %w", err))
	}
	cfg.FailurePolicy = policy

	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. It is rerun after command-line overrides.
func (c Config) Validate() error {
	var errs []error
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("AGGREGATOR_MAX_CONCURRENCY: must be at least 1"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AGGREGATOR_REQUEST_TIMEOUT: must be positive"))
	}
	if c.WorkerInterval <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_INTERVAL: must be positive"))
	}
	return errors.Join(errs...)
}

// Catalogue returns the catalogue from CatalogueFile, or the default one.
func (c Config) Catalogue() (infrastructure.Catalogue, error) {
	if c.CatalogueFile == "" {
		return infrastructure.DefaultCatalogue(), nil
	}
	return infrastructure.LoadCatalogue(c.CatalogueFile)
}

// CacheConfig returns the Redis cache settings.
func (c Config) CacheConfig() cache.Config {
	return cache.Config{
		Address:  c.RedisAddress,
		Password: c.RedisPassword,
		Database: c.RedisDatabase,
		TTL:      c.CacheTTL,
	}
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func durationEnv(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}
