package wfs

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FeatureCollection is the GeoJSON document returned by GetFeature with
// outputFormat=application/json. The counters are optional: GeoServer omits
// them or sends "unknown" depending on the query.
type FeatureCollection struct {
	Type           string      `json:"type"`
	Features       []Feature   `json:"features"`
	TotalFeatures  OptionalInt `json:"totalFeatures"`
	NumberMatched  OptionalInt `json:"numberMatched"`
	NumberReturned OptionalInt `json:"numberReturned"`
}

// Count resolves the collection size: totalFeatures, then numberMatched,
// then the number of features in the body.
func (fc *FeatureCollection) Count() int {
	if fc.TotalFeatures.Valid {
		return fc.TotalFeatures.Value
	}
	if fc.NumberMatched.Valid {
		return fc.NumberMatched.Value
	}
	return len(fc.Features)
}

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds a point geometry. Coordinates are [longitude, latitude].
// Non-point geometries decode with nil Coordinates.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"-"`
}

// UnmarshalJSON keeps coordinates only when they are a flat number array.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	g.Type = raw.Type
	g.Coordinates = nil

	var coords []float64
	if len(raw.Coordinates) > 0 && json.Unmarshal(raw.Coordinates, &coords) == nil {
		g.Coordinates = coords
	}
	return nil
}

// MarshalJSON writes the geometry back as GeoJSON.
func (g Geometry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates,omitempty"`
	}{g.Type, g.Coordinates})
}

// LonLat returns the point coordinates of a feature. ok is false when the
// feature has no geometry or fewer than two coordinates.
func (f *Feature) LonLat() (lon, lat float64, ok bool) {
	if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
		return 0, 0, false
	}
	return f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], true
}

// StringProperty returns a property rendered as a string, or "" when absent.
func (f *Feature) StringProperty(name string) string {
	v, ok := f.Properties[name]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// FloatProperty returns a numeric property. Numeric strings are parsed.
func (f *Feature) FloatProperty(name string) (float64, bool) {
	switch t := f.Properties[name].(type) {
	case float64:
		return t, true
	case string:
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// OptionalInt decodes a JSON integer that may be missing, null or a
// non-numeric placeholder such as "unknown".
type OptionalInt struct {
	Value int
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalInt) UnmarshalJSON(data []byte) error {
	o.Value, o.Valid = 0, false

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// "unknown" and other strings
		return nil
	}
	v, err := n.Int64()
	if err != nil {
		return nil
	}

	o.Value, o.Valid = int(v), true
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(o.Value)), nil
}
