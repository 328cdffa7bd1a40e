package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/server/handler"
)

type stubSource struct{ requested int }

func (s *stubSource) Catalogue() *domain.Catalogue {
	return domain.NewCatalogue([]domain.Cycle{{"BTC/USDT", "ETH/BTC", "ETH/USDT"}}, time.Now())
}

func (s *stubSource) RequestRebuild() bool {
	s.requested++
	return true
}

type stubLister struct{}

func (stubLister) ListRecent(context.Context, int) ([]domain.Opportunity, error) {
	return nil, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func (denyLimiter) Wait(context.Context, string, int, time.Duration) error { return nil }

func newTestServer(cfg Config, limiter domain.RateLimiter) (*Server, *stubSource) {
	src := &stubSource{}
	handlers := Handlers{
		Health:        handler.NewHealthHandler("full", time.Now(), src),
		Catalogue:     handler.NewCatalogueHandler(src, nil),
		Opportunities: handler.NewOpportunityHandler(stubLister{}, nil),
	}
	return NewServer(cfg, handlers, nil, limiter, nil), src
}

func serve(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_AuthProtectsAPI(t *testing.T) {
	s, src := newTestServer(Config{APIKey: "secret"}, nil)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/catalogue", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(s, http.MethodGet, "/api/catalogue", http.Header{"X-Api-Key": {"wrong"}}).Code)
	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/catalogue", http.Header{"X-Api-Key": {"secret"}}).Code)

	rec := serve(s, http.MethodPost, "/api/catalogue/rebuild", http.Header{"Authorization": {"Bearer secret"}})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, src.requested)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(Config{APIKey: "secret"}, nil)

	serve(s, http.MethodGet, "/api/health", nil)
	rec := serve(s, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `triarb_http_requests_total{method="GET",path="/api/health",status="200"}`))
}

func TestServer_CORSPreflight(t *testing.T) {
	s, _ := newTestServer(Config{CORSOrigins: []string{"https://dash.example"}}, nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		return serve(s, http.MethodOptions, "/api/catalogue/rebuild", http.Header{
			"Origin":                        {origin},
			"Access-Control-Request-Method": {http.MethodPost},
		})
	}

	rec := preflight("https://dash.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = preflight("https://evil.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimit(t *testing.T) {
	s, _ := newTestServer(Config{RateLimit: 1}, denyLimiter{})
	assert.Equal(t, http.StatusTooManyRequests, serve(s, http.MethodGet, "/api/health", nil).Code)
}
