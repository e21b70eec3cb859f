package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ecolyon/ecolyon/internal/api/models"
	"github.com/ecolyon/ecolyon/internal/api/response"
	"github.com/ecolyon/ecolyon/internal/snapshot"
)

// HistoryHandler serves recorded breakdown snapshots.
type HistoryHandler struct {
	repo snapshot.Repository
}

// NewHistoryHandler creates a new HistoryHandler. A nil repository answers 503.
func NewHistoryHandler(repo snapshot.Repository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// ListSnapshots handles GET /history?limit=n - newest first.
func (h *HistoryHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		response.ServiceUnavailable(w, r, "snapshot history is not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID"},
			})
			return
		}
		limit = n
	}

	snapshots, err := h.repo.List(r.Context(), snapshot.ClampLimit(limit))
	if err != nil {
		response.InternalError(w, r, "failed to list snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []*snapshot.Snapshot{}
	}

	response.JSON(w, r, http.StatusOK, models.HistoryResponse{
		Success:   true,
		Count:     len(snapshots),
		Snapshots: snapshots,
	})
}

// GetLatest handles GET /history/latest.
func (h *HistoryHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		response.ServiceUnavailable(w, r, "snapshot history is not configured")
		return
	}

	snap, err := h.repo.Latest(r.Context())
	if errors.Is(err, snapshot.ErrNotFound) {
		response.NotFound(w, r, "no snapshot recorded yet")
		return
	}
	if err != nil {
		response.InternalError(w, r, "failed to load latest snapshot")
		return
	}

	response.JSON(w, r, http.StatusOK, snap)
}
