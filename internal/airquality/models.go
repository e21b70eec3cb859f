// Package airquality provides the daily ATMO air quality index for Lyon,
// with caching.
package airquality

import (
	"errors"
	"time"
)

// Provider errors.
var (
	ErrNoIndex             = errors.New("no air quality index available")
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
)

// LyonINSEECode is the INSEE code of the commune of Lyon.
const LyonINSEECode = "69123"

// Pollutant represents a pollutant covered by the ATMO index.
type Pollutant string

const (
	PollutantNO2  Pollutant = "NO2"
	PollutantO3   Pollutant = "O3"
	PollutantPM10 Pollutant = "PM10"
	PollutantPM25 Pollutant = "PM2.5"
	PollutantSO2  Pollutant = "SO2"
)

// SubIndex is the index of one pollutant. The overall index is the worst
// sub-index.
type SubIndex struct {
	Pollutant     Pollutant `json:"pollutant"`
	Index         int       `json:"index"`
	Concentration float64   `json:"concentration,omitempty"`
}

// Index is the ATMO index of a commune for one day.
type Index struct {
	Commune    string     `json:"commune"`
	INSEECode  string     `json:"inseeCode"`
	Date       string     `json:"date"`
	Value      int        `json:"value"`
	Label      string     `json:"label"`
	Color      string     `json:"color,omitempty"`
	SubIndices []SubIndex `json:"subIndices,omitempty"`
	FetchedAt  time.Time  `json:"fetchedAt"`
	Provider   string     `json:"provider"`
}

// SubIndex returns the sub-index of a pollutant.
func (i *Index) SubIndex(p Pollutant) (SubIndex, bool) {
	for _, s := range i.SubIndices {
		if s.Pollutant == p {
			return s, true
		}
	}
	return SubIndex{}, false
}

// Worst returns the pollutant with the highest sub-index.
func (i *Index) Worst() (SubIndex, bool) {
	var (
		worst SubIndex
		found bool
	)
	for _, s := range i.SubIndices {
		if !found || s.Index > worst.Index {
			worst = s
			found = true
		}
	}
	return worst, found
}

var labels = map[int]string{
	0: "Indisponible",
	1: "Bon",
	2: "Moyen",
	3: "Dégradé",
	4: "Mauvais",
	5: "Très mauvais",
	6: "Extrêmement mauvais",
	7: "Événement",
}

// LabelFor returns the French qualifier of an index value.
func LabelFor(value int) string {
	if l, ok := labels[value]; ok {
		return l
	}
	return labels[0]
}
