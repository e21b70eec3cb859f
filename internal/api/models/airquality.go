package models

import "github.com/ecolyon/ecolyon/internal/airquality"

// AirQualityResponse is the body of GET /air-quality.
type AirQualityResponse struct {
	Success bool              `json:"success"`
	Index   *airquality.Index `json:"index"`
	Stale   bool              `json:"stale"`
}
