package atmo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolyon/ecolyon/internal/airquality"
	"github.com/ecolyon/ecolyon/internal/airquality/atmo"
	"github.com/ecolyon/ecolyon/internal/provider/resilience"
)

const lyonIndex = `{
  "data": [{
    "commune_nom": "Lyon",
    "code_insee": "69123",
    "date_echeance": "2026-10-19",
    "indice": 3,
    "qualificatif": "Dégradé",
    "couleur_html": "#F0E641",
    "sous_indices": [
      {"polluant_nom": "NO2", "indice": 2, "concentration": 31.4},
      {"polluant_nom": "O3", "indice": 1, "concentration": 40},
      {"polluant_nom": "PM10", "indice": 2, "concentration": 22},
      {"polluant_nom": "PM2.5", "indice": 3, "concentration": 17.5},
      {"polluant_nom": "SO2", "indice": 1, "concentration": 1},
      {"polluant_nom": "CO", "indice": 1, "concentration": 1}
    ]
  }]
}`

func TestClient_FetchIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/communes/69123/indices/atmo", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_token"))
		assert.Equal(t, "now", r.URL.Query().Get("date_echeance"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(lyonIndex))
	}))
	defer server.Close()

	client := atmo.NewClient(atmo.ClientConfig{
		BaseURL:    server.URL,
		APIToken:   "secret",
		HTTPClient: http.DefaultClient,
	})

	index, err := client.FetchIndex(context.Background(), airquality.LyonINSEECode)
	require.NoError(t, err)

	assert.Equal(t, "Lyon", index.Commune)
	assert.Equal(t, "69123", index.INSEECode)
	assert.Equal(t, 3, index.Value)
	assert.Equal(t, "Dégradé", index.Label)
	assert.Equal(t, atmo.ProviderName, index.Provider)
	require.Len(t, index.SubIndices, 5)

	pm25, ok := index.SubIndex(airquality.PollutantPM25)
	require.True(t, ok)
	assert.Equal(t, 3, pm25.Index)
	assert.Equal(t, 17.5, pm25.Concentration)

	worst, ok := index.Worst()
	require.True(t, ok)
	assert.Equal(t, airquality.PollutantPM25, worst.Pollutant)
}

func TestClient_FetchIndex_LabelFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"indice":1}]}`))
	}))
	defer server.Close()

	client := atmo.NewClient(atmo.ClientConfig{BaseURL: server.URL, APIToken: "t", HTTPClient: http.DefaultClient})

	index, err := client.FetchIndex(context.Background(), "69123")
	require.NoError(t, err)
	assert.Equal(t, "Bon", index.Label)
	assert.Equal(t, "69123", index.INSEECode)
}

func TestClient_FetchIndex_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "malformed", status: http.StatusOK, body: "{"},
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`, wantErr: airquality.ErrNoIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := atmo.NewClient(atmo.ClientConfig{BaseURL: server.URL, APIToken: "t", HTTPClient: http.DefaultClient})

			_, err := client.FetchIndex(context.Background(), "69123")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestClient_FetchIndex_MissingToken(t *testing.T) {
	client := atmo.NewClient(atmo.ClientConfig{HTTPClient: http.DefaultClient})

	_, err := client.FetchIndex(context.Background(), "69123")
	assert.ErrorIs(t, err, atmo.ErrMissingToken)
}

func TestClient_FetchIndex_TransportErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	registry := resilience.NewRegistry()
	client := atmo.NewClient(atmo.ClientConfig{
		BaseURL:  baseURL,
		APIToken: "SECRET-TOKEN",
		Registry: registry,
		Timeout:  time.Second,
	})

	_, err := client.FetchIndex(context.Background(), airquality.LyonINSEECode)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
	assert.Contains(t, err.Error(), "/communes/69123/indices/atmo")

	health := registry.GetAllHealth()
	require.Len(t, health, 1)
	assert.NotEmpty(t, health[0].LastError)
	assert.NotContains(t, health[0].LastError, "SECRET-TOKEN")
}

func TestClient_FetchIndex_PlainDoerErrorHidesToken(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client := atmo.NewClient(atmo.ClientConfig{
		BaseURL:    baseURL,
		APIToken:   "SECRET-TOKEN",
		HTTPClient: http.DefaultClient,
	})

	_, err := client.FetchIndex(context.Background(), airquality.LyonINSEECode)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-TOKEN")
}
