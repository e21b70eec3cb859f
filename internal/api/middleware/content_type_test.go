package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecolyon/ecolyon/internal/api/middleware"
)

func TestContentTypeJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.ContentTypeJSON(http.HandlerFunc(okHandler)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestCacheControl(t *testing.T) {
	mw := middleware.CacheControl(time.Hour, 24*time.Hour)

	tests := []struct {
		name   string
		method string
		status int
		want   string
	}{
		{"success", http.MethodGet, http.StatusOK, "public, s-maxage=3600, stale-while-revalidate=86400"},
		{"upstream failure", http.MethodGet, http.StatusBadGateway, "no-store"},
		{"not found", http.MethodGet, http.StatusNotFound, "no-store"},
		{"non-GET untouched", http.MethodPost, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})).ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/infrastructure", http.NoBody))

			assert.Equal(t, tt.want, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestCacheControl_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	middleware.CacheControl(time.Hour, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, "public, s-maxage=3600, stale-while-revalidate=86400", rec.Header().Get("Cache-Control"))
}
