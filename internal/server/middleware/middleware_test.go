package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuth(t *testing.T) {
	h := Auth("secret", "/api/health")(okHandler)

	cases := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{"public path", "/api/health", nil, http.StatusOK},
		{"missing token", "/api/catalogue", nil, http.StatusUnauthorized},
		{"bearer", "/api/catalogue", http.Header{"Authorization": {"Bearer secret"}}, http.StatusOK},
		{"bearer lower case", "/api/catalogue", http.Header{"Authorization": {"bearer secret"}}, http.StatusOK},
		{"api key header", "/api/catalogue", http.Header{"X-Api-Key": {"secret"}}, http.StatusOK},
		{"wrong key", "/api/catalogue", http.Header{"X-Api-Key": {"nope"}}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			for k, v := range tc.header {
				req.Header[k] = v
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestAuth_Disabled(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalogue", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fixedLimiter struct {
	allow bool
	err   error
	key   string
}

func (f *fixedLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	f.key = key
	return f.allow, f.err
}

func (f *fixedLimiter) Wait(context.Context, string, int, time.Duration) error { return nil }

func TestRateLimit(t *testing.T) {
	lim := &fixedLimiter{}
	req := httptest.NewRequest(http.MethodGet, "/api/catalogue", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	rec := httptest.NewRecorder()
	RateLimit(lim, 10, 2500*time.Millisecond)(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Equal(t, "api:203.0.113.7", lim.key)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	rec := httptest.NewRecorder()
	RateLimit(&fixedLimiter{err: errors.New("redis down")}, 10, time.Second)(okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))
}

func TestLogging_RecordsStatus(t *testing.T) {
	h := Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
