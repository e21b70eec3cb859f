package models

import "github.com/ecolyon/ecolyon/internal/snapshot"

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Success   bool                 `json:"success"`
	Count     int                  `json:"count"`
	Snapshots []*snapshot.Snapshot `json:"snapshots"`
}
