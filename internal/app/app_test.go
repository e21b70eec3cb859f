package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolyon/ecolyon/internal/app"
	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/config"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
	"github.com/ecolyon/ecolyon/internal/snapshot"
)

func baseConfig() config.Config {
	return config.Config{
		WFSBaseURL:     "http://127.0.0.1:0/ows",
		MaxConcurrency: 4,
		RequestTimeout: time.Second,
		FailurePolicy:  infrastructure.FailureAsZero,
		CacheTTL:       cache.DefaultTTL,
	}
}

func TestBuild_Minimal(t *testing.T) {
	s, err := app.Build(context.Background(), baseConfig(), zerolog.Nop(), app.Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.Infrastructure)
	assert.Len(t, s.Infrastructure.Catalogue().Endpoints, 8)
	assert.Nil(t, s.AirQuality)
	assert.Nil(t, s.Cache)
	assert.Nil(t, s.Snapshots)
	assert.Empty(t, s.Dependencies())
	assert.Contains(t, s.Registry.GetProviderNames(), "grandlyon-wfs")
}

func TestBuild_AirQuality(t *testing.T) {
	cfg := baseConfig()
	cfg.ATMOAPIToken = "token"

	s, err := app.Build(context.Background(), cfg, zerolog.Nop(), app.Options{Metrics: true})
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.AirQuality)
	assert.NotNil(t, s.ProviderMetrics)
	assert.ElementsMatch(t, []string{"grandlyon-wfs", "atmo-aura"}, s.Registry.GetProviderNames())
}

func TestBuild_Storage(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig()
	cfg.RedisAddress = mr.Addr()

	s, err := app.Build(context.Background(), cfg, zerolog.Nop(), app.Options{Storage: true})
	require.NoError(t, err)
	defer s.Close()

	require.NotNil(t, s.Cache)
	assert.IsType(t, &snapshot.InMemoryRepository{}, s.Snapshots)

	deps := s.Dependencies()
	require.Len(t, deps, 1)
	assert.Equal(t, "redis", deps[0].Name)
	assert.NoError(t, deps[0].Pinger.Ping(context.Background()))
}

func TestBuild_InvalidCatalogue(t *testing.T) {
	cfg := baseConfig()
	cfg.CatalogueFile = "/nonexistent/catalogue.yaml"

	_, err := app.Build(context.Background(), cfg, zerolog.Nop(), app.Options{})
	assert.ErrorContains(t, err, "load catalogue")
}

func TestBuild_CacheUnreachable(t *testing.T) {
	cfg := baseConfig()
	cfg.RedisAddress = "127.0.0.1:1"

	_, err := app.Build(context.Background(), cfg, zerolog.Nop(), app.Options{Storage: true})
	assert.ErrorContains(t, err, "connect cache")
}
