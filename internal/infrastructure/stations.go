package infrastructure

import (
	"math"
	"sort"
	"strconv"

	"github.com/ecolyon/ecolyon/internal/geodata/wfs"
)

// coordinatePrecision is the number of decimals kept when keying stations
// (about 0.11 m at Lyon's latitude).
const coordinatePrecision = 6

// ChargingStation is a physical charging site. Several connectors reported
// at the same rounded coordinates collapse into one station.
type ChargingStation struct {
	Key            string  `json:"key"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	Operator       string  `json:"operator,omitempty"`
	MaxPowerKW     float64 `json:"maxPowerKw,omitempty"`
	CommuneCode    string  `json:"communeCode,omitempty"`
	ConnectorCount int     `json:"connectorCount"`
}

// roundCoordinate rounds v half away from zero to coordinatePrecision decimals.
func roundCoordinate(v float64) float64 {
	scale := math.Pow10(coordinatePrecision)
	return math.Round(v*scale) / scale
}

// StationKey builds the "{lat}_{lon}" key of coordinates rounded and
// formatted to coordinatePrecision decimals.
func StationKey(lat, lon float64) string {
	return strconv.FormatFloat(roundCoordinate(lat), 'f', coordinatePrecision, 64) +
		"_" +
		strconv.FormatFloat(roundCoordinate(lon), 'f', coordinatePrecision, 64)
}

// DeduplicateStations groups features by rounded coordinates. Features
// without at least two coordinates are dropped. Stations are returned in
// first-seen order; the first feature of a group provides the operator and
// commune, the power is the maximum over the group.
func DeduplicateStations(features []wfs.Feature, dataset ChargingDataset) []ChargingStation {
	index := make(map[string]int)
	stations := make([]ChargingStation, 0)

	for i := range features {
		f := &features[i]
		lon, lat, ok := f.LonLat()
		if !ok {
			continue
		}

		key := StationKey(lat, lon)
		power, _ := f.FloatProperty(dataset.PowerField)

		if pos, exists := index[key]; exists {
			st := &stations[pos]
			st.ConnectorCount++
			if power > st.MaxPowerKW {
				st.MaxPowerKW = power
			}
			if st.Operator == "" {
				st.Operator = f.StringProperty(dataset.OperatorField)
			}
			continue
		}

		index[key] = len(stations)
		stations = append(stations, ChargingStation{
			Key:            key,
			Lat:            roundCoordinate(lat),
			Lon:            roundCoordinate(lon),
			Operator:       f.StringProperty(dataset.OperatorField),
			MaxPowerKW:     power,
			CommuneCode:    f.StringProperty(dataset.CommuneField),
			ConnectorCount: 1,
		})
	}

	return stations
}

// CountDistinctStations returns the number of distinct rounded coordinate keys.
func CountDistinctStations(features []wfs.Feature) int {
	keys := make(map[string]struct{})
	for i := range features {
		lon, lat, ok := features[i].LonLat()
		if !ok {
			continue
		}
		keys[StationKey(lat, lon)] = struct{}{}
	}
	return len(keys)
}

// SortStations orders stations by commune code then key, for stable listings.
func SortStations(stations []ChargingStation) {
	sort.SliceStable(stations, func(i, j int) bool {
		if stations[i].CommuneCode != stations[j].CommuneCode {
			return stations[i].CommuneCode < stations[j].CommuneCode
		}
		return stations[i].Key < stations[j].Key
	})
}
