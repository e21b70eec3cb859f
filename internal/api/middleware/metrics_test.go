package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolyon/ecolyon/internal/api/middleware"
)

func TestMetrics_Middleware(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("body"))
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/infrastructure", http.NoBody))

		assert.Equal(t, status, rec.Code)
		assert.Equal(t, "body", rec.Body.String())
	}
}

func TestProviderMetrics(t *testing.T) {
	pm, err := middleware.NewProviderMetrics()
	require.NoError(t, err)

	pm.RecordRequest("grandlyon-wfs", "count", 120*time.Millisecond, nil)
	pm.RecordRequest("grandlyon-wfs", "district_features", time.Second, errors.New("timeout"))
	pm.RecordCacheHit("infrastructure")
	pm.RecordCacheMiss("stations")
}
