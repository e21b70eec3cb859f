package airquality

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Provider fetches the ATMO index of a commune.
type Provider interface {
	FetchIndex(ctx context.Context, inseeCode string) (*Index, error)
}

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the air quality data provider.
	Provider Provider

	// INSEECode is the commune to report (default: LyonINSEECode).
	INSEECode string

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache the index (default: 30 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale data on provider errors (default: 6 hours).
	StaleIfErrorTTL time.Duration
}

// Service provides the air quality index with caching.
type Service struct {
	provider        Provider
	inseeCode       string
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu          sync.RWMutex
	index       *Index
	cacheExpiry time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	inseeCode := cfg.INSEECode
	if inseeCode == "" {
		inseeCode = LyonINSEECode
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 6 * time.Hour
	}

	return &Service{
		provider:        cfg.Provider,
		inseeCode:       inseeCode,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// GetIndex returns the current index, from cache when fresh.
func (s *Service) GetIndex(ctx context.Context) (*Index, error) {
	s.mu.RLock()
	if s.index != nil && time.Now().Before(s.cacheExpiry) {
		index := s.index
		s.mu.RUnlock()
		return index, nil
	}
	s.mu.RUnlock()

	return s.refreshIndex(ctx, false)
}

// RefreshIndex forces a fetch from the provider.
func (s *Service) RefreshIndex(ctx context.Context) error {
	_, err := s.refreshIndex(ctx, true)
	return err
}

// InvalidateCache clears the cached index.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
	s.cacheExpiry = time.Time{}
}

// CacheStatus represents the current state of the cache.
type CacheStatus struct {
	HasData   bool
	FetchedAt time.Time
	ExpiresAt time.Time
	IsExpired bool
	IsStale   bool
	Provider  string
}

// CacheStatus returns information about the current cache state.
func (s *Service) CacheStatus() CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil {
		return CacheStatus{}
	}

	now := time.Now()
	return CacheStatus{
		HasData:   true,
		FetchedAt: s.index.FetchedAt,
		ExpiresAt: s.cacheExpiry,
		IsExpired: now.After(s.cacheExpiry),
		IsStale:   now.After(s.index.FetchedAt.Add(s.staleIfErrorTTL)),
		Provider:  s.index.Provider,
	}
}

func (s *Service) refreshIndex(ctx context.Context, force bool) (*Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// another goroutine may have refreshed while we waited
	if !force && s.index != nil && time.Now().Before(s.cacheExpiry) {
		return s.index, nil
	}

	s.logger.Debug().Str("insee", s.inseeCode).Msg("refreshing air quality index")

	index, err := s.provider.FetchIndex(ctx, s.inseeCode)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch air quality index")

		if s.index != nil && time.Now().Before(s.index.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.index.FetchedAt).
				Msg("serving stale air quality index due to provider error")
			return s.index, nil
		}

		return nil, ErrProviderUnavailable
	}

	s.index = index
	s.cacheExpiry = time.Now().Add(s.cacheTTL)

	s.logger.Info().
		Int("index", index.Value).
		Str("label", index.Label).
		Time("expires_at", s.cacheExpiry).
		Msg("air quality index refreshed")

	return index, nil
}
