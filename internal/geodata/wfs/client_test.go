package wfs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolyon/ecolyon/internal/geodata/wfs"
)

func TestClient_Count_QueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "WFS", q.Get("SERVICE"))
		assert.Equal(t, "2.0.0", q.Get("VERSION"))
		assert.Equal(t, "GetFeature", q.Get("request"))
		assert.Equal(t, "metropole-de-lyon:adr_voie_lieu.adrbanc_latest", q.Get("typename"))
		assert.Equal(t, "application/json", q.Get("outputFormat"))
		assert.Equal(t, "EPSG:4171", q.Get("SRSNAME"))
		assert.Equal(t, "1", q.Get("count"))
		assert.Empty(t, q.Get("CQL_FILTER"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature"}],"totalFeatures":3417}`))
	}))
	defer server.Close()

	client := wfs.NewClient(wfs.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: http.DefaultClient,
	})

	count, err := client.Count(context.Background(), "metropole-de-lyon:adr_voie_lieu.adrbanc_latest")
	require.NoError(t, err)
	assert.Equal(t, 3417, count)
}

func TestClient_Count_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{
			name:     "totalFeatures wins",
			body:     `{"type":"FeatureCollection","features":[{"type":"Feature"}],"totalFeatures":12,"numberMatched":34}`,
			expected: 12,
		},
		{
			name:     "numberMatched when totalFeatures missing",
			body:     `{"type":"FeatureCollection","features":[{"type":"Feature"}],"numberMatched":34}`,
			expected: 34,
		},
		{
			name:     "numberMatched when totalFeatures unknown",
			body:     `{"type":"FeatureCollection","features":[],"totalFeatures":"unknown","numberMatched":56}`,
			expected: 56,
		},
		{
			name:     "feature length as last resort",
			body:     `{"type":"FeatureCollection","features":[{"type":"Feature"},{"type":"Feature"}]}`,
			expected: 2,
		},
		{
			name:     "zero when nothing usable",
			body:     `{"type":"FeatureCollection"}`,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := wfs.NewClient(wfs.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

			count, err := client.Count(context.Background(), "ds")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, count)
		})
	}
}

func TestClient_Count_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := wfs.NewClient(wfs.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.Count(context.Background(), "ds")
	require.Error(t, err)

	var statusErr *wfs.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "ds", statusErr.TypeName)
}

func TestClient_Count_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<ows:ExceptionReport>`))
	}))
	defer server.Close()

	client := wfs.NewClient(wfs.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	_, err := client.Count(context.Background(), "ds")
	assert.Error(t, err)
}

func TestClient_GetFeatures_WithFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "code_insee='69381'", q.Get("CQL_FILTER"))
		assert.Empty(t, q.Get("count"))

		response := map[string]interface{}{
			"type": "FeatureCollection",
			"features": []map[string]interface{}{
				{
					"type":     "Feature",
					"geometry": map[string]interface{}{"type": "Point", "coordinates": []float64{4.8357, 45.764}},
					"properties": map[string]interface{}{
						"nom_operateur":      "Izivia",
						"puissance_nominale": 22,
						"code_insee":         "69381",
					},
				},
				{
					"type":       "Feature",
					"geometry":   nil,
					"properties": map[string]interface{}{},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := wfs.NewClient(wfs.ClientConfig{BaseURL: server.URL, HTTPClient: http.DefaultClient})

	fc, err := client.GetFeatures(context.Background(), wfs.Query{
		TypeName:  "stations",
		CQLFilter: "code_insee='69381'",
	})
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	lon, lat, ok := fc.Features[0].LonLat()
	require.True(t, ok)
	assert.Equal(t, 4.8357, lon)
	assert.Equal(t, 45.764, lat)
	assert.Equal(t, "Izivia", fc.Features[0].StringProperty("nom_operateur"))
	assert.Equal(t, "69381", fc.Features[0].StringProperty("code_insee"))

	power, ok := fc.Features[0].FloatProperty("puissance_nominale")
	require.True(t, ok)
	assert.Equal(t, 22.0, power)

	_, _, ok = fc.Features[1].LonLat()
	assert.False(t, ok)
}

func TestClient_GetFeatures_EmptyTypeName(t *testing.T) {
	client := wfs.NewClient(wfs.ClientConfig{BaseURL: "http://unused", HTTPClient: http.DefaultClient})

	_, err := client.GetFeatures(context.Background(), wfs.Query{})
	assert.Error(t, err)
}

func TestGeometry_NonPointCoordinates(t *testing.T) {
	var f wfs.Feature
	err := json.Unmarshal([]byte(`{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[4.8,45.7],[4.9,45.8]]]}}`), &f)
	require.NoError(t, err)

	require.NotNil(t, f.Geometry)
	assert.Equal(t, "Polygon", f.Geometry.Type)
	_, _, ok := f.LonLat()
	assert.False(t, ok)
}

func TestQuery_Values(t *testing.T) {
	q := wfs.Query{
		TypeName:      "ds",
		Count:         10,
		PropertyNames: []string{"nom", "code"},
	}

	v := q.Values("EPSG:4326")
	assert.Equal(t, "10", v.Get("count"))
	assert.Equal(t, "EPSG:4326", v.Get("SRSNAME"))
	assert.Equal(t, "nom,code", v.Get("propertyName"))
}
