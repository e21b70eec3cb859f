package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/ecolyon/ecolyon/internal/airquality"
	"github.com/ecolyon/ecolyon/internal/api/models"
	"github.com/ecolyon/ecolyon/internal/api/response"
)

// AirQualityService provides the current air quality index.
type AirQualityService interface {
	GetIndex(ctx context.Context) (*airquality.Index, error)
	CacheStatus() airquality.CacheStatus
}

// AirQualityHandler serves the ATMO index for Lyon.
type AirQualityHandler struct {
	service AirQualityService
}

// NewAirQualityHandler creates a new AirQualityHandler. A nil service
// answers 503.
func NewAirQualityHandler(service AirQualityService) *AirQualityHandler {
	return &AirQualityHandler{service: service}
}

// GetIndex handles GET /air-quality.
func (h *AirQualityHandler) GetIndex(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		response.ServiceUnavailable(w, r, "air quality provider is not configured")
		return
	}

	index, err := h.service.GetIndex(r.Context())
	if err != nil {
		if errors.Is(err, airquality.ErrProviderUnavailable) || errors.Is(err, airquality.ErrNoIndex) {
			response.BadGateway(w, r, err.Error())
			return
		}
		response.InternalError(w, r, "failed to get air quality index")
		return
	}

	response.JSON(w, r, http.StatusOK, models.AirQualityResponse{
		Success: true,
		Index:   index,
		Stale:   h.service.CacheStatus().IsExpired,
	})
}
