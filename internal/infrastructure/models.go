// Package infrastructure counts Lyon public infrastructure (parks, benches,
// fountains, toilets, bins, silos, compost points, charging stations) from the
// Grand Lyon geodata service and aggregates the counts into a ranked breakdown.
package infrastructure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownType is returned when a catalogue key does not exist.
	ErrUnknownType = errors.New("unknown infrastructure type")

	// ErrIncomplete is returned with a breakdown under FailureStrict when at
	// least one sub-fetch failed.
	ErrIncomplete = errors.New("infrastructure breakdown incomplete")
)

// ChargingStationsKey and ChargingStationsName identify the synthetic
// breakdown entry for deduplicated charging stations.
const (
	ChargingStationsKey  = "stations-recharge"
	ChargingStationsName = "Stations de Recharge"
)

// Endpoint describes one dataset of the catalogue.
type Endpoint struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	TypeName    string `json:"typename" yaml:"typename"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ChargingDataset describes the charging-station dataset and how it is
// partitioned by district.
type ChargingDataset struct {
	Name          string   `json:"name" yaml:"name"`
	TypeName      string   `json:"typename" yaml:"typename"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	CommuneField  string   `json:"communeField" yaml:"commune_field"`
	OperatorField string   `json:"operatorField" yaml:"operator_field"`
	PowerField    string   `json:"powerField" yaml:"power_field"`
	Districts     []string `json:"districts" yaml:"districts"`
}

// DistrictFilter returns the CQL filter selecting one district.
func (d ChargingDataset) DistrictFilter(code string) string {
	return fmt.Sprintf("%s='%s'", d.CommuneField, strings.ReplaceAll(code, "'", "''"))
}

// FailurePolicy decides how failed sub-fetches affect an aggregation.
type FailurePolicy string

const (
	// FailureAsZero counts a failed sub-fetch as zero and flags the breakdown degraded.
	FailureAsZero FailurePolicy = "zero"

	// FailureStrict returns ErrIncomplete alongside the breakdown.
	FailureStrict FailurePolicy = "strict"
)

// ParseFailurePolicy parses a policy name. Empty means FailureAsZero.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureAsZero:
		return FailureAsZero, nil
	case FailureStrict:
		return FailureStrict, nil
	default:
		return "", fmt.Errorf("invalid failure policy %q", s)
	}
}

// CountResult is the outcome of one count. Err is set when the count could
// not be fully obtained; Count then holds what was obtained (0 for a failed
// single request).
type CountResult struct {
	Key   string
	Name  string
	Count int
	Err   error
}

// OK reports whether the count was obtained without error.
func (r CountResult) OK() bool {
	return r.Err == nil
}

// BreakdownItem is one category of the breakdown.
type BreakdownItem struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Failure records a failed sub-fetch.
type Failure struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Breakdown is the per-category result of an aggregation, sorted by count
// descending. Total is always the sum of the item counts.
type Breakdown struct {
	Items    []BreakdownItem `json:"items"`
	Total    int             `json:"total"`
	Degraded bool            `json:"degraded"`
	Failures []Failure       `json:"failures,omitempty"`
}

// Sum returns the sum of item counts.
func (b *Breakdown) Sum() int {
	total := 0
	for _, item := range b.Items {
		total += item.Count
	}
	return total
}

// Item returns the item with the given key.
func (b *Breakdown) Item(key string) (BreakdownItem, bool) {
	for _, item := range b.Items {
		if item.Key == key {
			return item, true
		}
	}
	return BreakdownItem{}, false
}
