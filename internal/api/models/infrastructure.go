package models

import "github.com/ecolyon/ecolyon/internal/infrastructure"

// InfrastructureResponse is the body of GET /infrastructure.
type InfrastructureResponse struct {
	Success  bool                           `json:"success"`
	Total    int                            `json:"total"`
	Degraded bool                           `json:"degraded"`
	Items    []infrastructure.BreakdownItem `json:"items"`
	Failures []infrastructure.Failure       `json:"failures,omitempty"`
	Error    string                         `json:"error,omitempty"`
}

// NewInfrastructureResponse builds the breakdown envelope.
func NewInfrastructureResponse(bd *infrastructure.Breakdown) InfrastructureResponse {
	items := bd.Items
	if items == nil {
		items = []infrastructure.BreakdownItem{}
	}
	return InfrastructureResponse{
		Success:  true,
		Total:    bd.Total,
		Degraded: bd.Degraded,
		Items:    items,
		Failures: bd.Failures,
	}
}

// TotalResponse is the body of GET /infrastructure/total.
type TotalResponse struct {
	Success  bool   `json:"success"`
	Total    int    `json:"total"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// TypeCountResponse is the body of GET /infrastructure/{type}.
type TypeCountResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Type    string `json:"type"`
	Error   string `json:"error,omitempty"`
}

// StationsResponse is the body of GET /stations.
type StationsResponse struct {
	Success  bool                             `json:"success"`
	Count    int                              `json:"count"`
	Degraded bool                             `json:"degraded"`
	Stations []infrastructure.ChargingStation `json:"stations"`
	Failures []infrastructure.Failure         `json:"failures,omitempty"`
	Error    string                           `json:"error,omitempty"`
}

// NewStationsResponse builds the stations envelope.
func NewStationsResponse(list *infrastructure.StationList) StationsResponse {
	stations := list.Stations
	if stations == nil {
		stations = []infrastructure.ChargingStation{}
	}
	return StationsResponse{
		Success:  true,
		Count:    len(stations),
		Degraded: len(list.Failures) > 0,
		Stations: stations,
		Failures: list.Failures,
	}
}
