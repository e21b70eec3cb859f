package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// ContentTypeJSON defaults the response Content-Type to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
		}
		next.ServeHTTP(w, r)
	})
}

// CacheControl marks successful GET responses as publicly cacheable for
// maxAge, with stale-while-revalidate for staleWhileRevalidate.
func CacheControl(maxAge, staleWhileRevalidate time.Duration) func(http.Handler) http.Handler {
	value := "public, s-maxage=" + strconv.Itoa(int(maxAge.Seconds())) +
		", stale-while-revalidate=" + strconv.Itoa(int(staleWhileRevalidate.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, value: value}, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cacheControlWriter sets Cache-Control just before a 2xx header is sent.
type cacheControlWriter struct {
	http.ResponseWriter
	value       string
	wroteHeader bool
}

func (cw *cacheControlWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.wroteHeader = true
		if code >= 200 && code < 300 {
			cw.Header().Set("Cache-Control", cw.value)
		} else {
			cw.Header().Set("Cache-Control", "no-store")
		}
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *cacheControlWriter) Write(b []byte) (int, error) {
	if !cw.wroteHeader {
		cw.WriteHeader(http.StatusOK)
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *cacheControlWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
