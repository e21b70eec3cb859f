// Package snapshot persists infrastructure breakdowns over time.
package snapshot

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

// ErrNotFound is returned when no snapshot exists.
var ErrNotFound = errors.New("snapshot not found")

// DefaultListLimit and MaxListLimit bound List.
const (
	DefaultListLimit = 24
	MaxListLimit     = 500
)

// Snapshot is a breakdown recorded at a point in time.
type Snapshot struct {
	ID       string                         `json:"id"`
	TakenAt  time.Time                      `json:"takenAt"`
	Total    int                            `json:"total"`
	Degraded bool                           `json:"degraded"`
	Items    []infrastructure.BreakdownItem `json:"items"`
}

// New records a breakdown taken at takenAt.
func New(bd *infrastructure.Breakdown, takenAt time.Time) *Snapshot {
	items := make([]infrastructure.BreakdownItem, len(bd.Items))
	copy(items, bd.Items)

	return &Snapshot{
		ID:       uuid.NewString(),
		TakenAt:  takenAt.UTC(),
		Total:    bd.Total,
		Degraded: bd.Degraded,
		Items:    items,
	}
}

// ClampLimit normalizes a requested list size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
