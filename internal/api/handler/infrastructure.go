package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ecolyon/ecolyon/internal/api/models"
	"github.com/ecolyon/ecolyon/internal/api/response"
	"github.com/ecolyon/ecolyon/internal/cache"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

// InfrastructureService is the aggregator behind the infrastructure routes.
type InfrastructureService interface {
	Breakdown(ctx context.Context) (*infrastructure.Breakdown, error)
	CountByKey(ctx context.Context, key string) (infrastructure.CountResult, error)
	Stations(ctx context.Context) *infrastructure.StationList
}

// ResponseCache stores encoded responses between requests.
type ResponseCache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// CacheRecorder counts cache hits and misses per response family.
type CacheRecorder interface {
	RecordCacheHit(family string)
	RecordCacheMiss(family string)
}

// InfrastructureConfig holds configuration for the InfrastructureHandler.
type InfrastructureConfig struct {
	Service InfrastructureService
	Cache   ResponseCache
	Metrics CacheRecorder
	Logger  zerolog.Logger
}

// InfrastructureHandler serves infrastructure counts and charging stations.
type InfrastructureHandler struct {
	service InfrastructureService
	cache   ResponseCache
	metrics CacheRecorder
	logger  zerolog.Logger
}

// NewInfrastructureHandler creates a new InfrastructureHandler.
func NewInfrastructureHandler(cfg InfrastructureConfig) *InfrastructureHandler {
	return &InfrastructureHandler{
		service: cfg.Service,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// GetBreakdown handles GET /infrastructure - per-category counts.
func (h *InfrastructureHandler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	resp, status := h.breakdown(r.Context())
	response.JSON(w, r, status, resp)
}

// GetTotal handles GET /infrastructure/total - the grand total.
func (h *InfrastructureHandler) GetTotal(w http.ResponseWriter, r *http.Request) {
	resp, status := h.breakdown(r.Context())
	response.JSON(w, r, status, models.TotalResponse{
		Success:  resp.Success,
		Total:    resp.Total,
		Degraded: resp.Degraded,
		Error:    resp.Error,
	})
}

// GetTypeCount handles GET /infrastructure/{type} - the count of one category.
func (h *InfrastructureHandler) GetTypeCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "type")
	cacheKey := cache.InfrastructureTypeKey(key)

	var cached models.TypeCountResponse
	if h.lookup(ctx, "infrastructure_type", cacheKey, &cached) {
		response.JSON(w, r, http.StatusOK, cached)
		return
	}

	result, err := h.service.CountByKey(ctx, key)
	if errors.Is(err, infrastructure.ErrUnknownType) {
		response.JSON(w, r, http.StatusNotFound, models.TypeCountResponse{
			Success: false,
			Count:   0,
			Type:    key,
			Error:   "Type d'infrastructure inconnu: " + key,
		})
		return
	}

	if !result.OK() {
		response.JSON(w, r, http.StatusBadGateway, models.TypeCountResponse{
			Success: false,
			Count:   result.Count,
			Type:    key,
			Error:   result.Err.Error(),
		})
		return
	}

	resp := models.TypeCountResponse{Success: true, Count: result.Count, Type: key}
	h.store(ctx, cacheKey, resp)
	response.JSON(w, r, http.StatusOK, resp)
}

// ListStations handles GET /stations - deduplicated charging stations.
func (h *InfrastructureHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached models.StationsResponse
	if h.lookup(ctx, "stations", cache.StationsKey, &cached) {
		response.JSON(w, r, http.StatusOK, cached)
		return
	}

	list := h.service.Stations(ctx)
	resp := models.NewStationsResponse(list)

	if len(list.Stations) == 0 && len(list.Failures) > 0 {
		resp.Success = false
		resp.Error = "charging stations unavailable"
		response.JSON(w, r, http.StatusBadGateway, resp)
		return
	}

	if !resp.Degraded {
		h.store(ctx, cache.StationsKey, resp)
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// breakdown returns the breakdown envelope and its HTTP status. Complete
// breakdowns are cached; degraded ones are served but recomputed next time.
func (h *InfrastructureHandler) breakdown(ctx context.Context) (models.InfrastructureResponse, int) {
	var cached models.InfrastructureResponse
	if h.lookup(ctx, "infrastructure", cache.InfrastructureBreakdownKey, &cached) {
		return cached, http.StatusOK
	}

	bd, err := h.service.Breakdown(ctx)
	if bd == nil {
		bd = &infrastructure.Breakdown{}
	}
	resp := models.NewInfrastructureResponse(bd)

	if err != nil {
		resp.Success = false
		resp.Error = err.Error()
		return resp, http.StatusBadGateway
	}

	if !resp.Degraded {
		h.store(ctx, cache.InfrastructureBreakdownKey, resp)
	}
	return resp, http.StatusOK
}

func (h *InfrastructureHandler) lookup(ctx context.Context, family, key string, dst any) bool {
	if h.cache == nil {
		return false
	}

	hit := h.cache.GetJSON(ctx, key, dst)
	if h.metrics != nil {
		if hit {
			h.metrics.RecordCacheHit(family)
		} else {
			h.metrics.RecordCacheMiss(family)
		}
	}
	return hit
}

func (h *InfrastructureHandler) store(ctx context.Context, key string, v any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetJSON(ctx, key, v, 0); err != nil {
		h.logger.Warn().Err(err).Str("key", key).Msg("failed to cache response")
	}
}
