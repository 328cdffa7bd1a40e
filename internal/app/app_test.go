package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/catalogue"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/domain"
)

func fakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/exchangeInfo" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDT"},
			{"symbol":"ETHBTC","status":"TRADING","baseAsset":"ETH","quoteAsset":"BTC"},
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Exchange.BaseURL = baseURL
	cfg.Exchange.RequestsPerSecond = 1000
	cfg.Catalogue.Path = filepath.Join(t.TempDir(), "paths.pb")
	return &cfg
}

func TestRun_UnsupportedMode(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Mode = "trade"

	a := New(cfg, nil)
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported mode "trade"`)
}

func TestWire_OptionalBackendsDisabled(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")

	deps, cleanup, err := Wire(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Exchange)
	assert.NotNil(t, deps.CatalogueStore)
	assert.Equal(t, cfg.Catalogue.Path, deps.CatalogueFile.Path())
	assert.NotNil(t, deps.Notifier)
	assert.False(t, deps.Notifier.Enabled())
	assert.Nil(t, deps.OpportunityStore)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.Archiver)
}

func TestRun_BuildModePersistsCatalogue(t *testing.T) {
	srv := fakeExchange(t)
	cfg := testConfig(t, srv.URL)
	cfg.Mode = "build"

	a := New(cfg, nil)
	defer a.Close()
	require.NoError(t, a.Run(context.Background()))

	cat, err := catalogue.NewFileStore(cfg.Catalogue.Path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	assert.Contains(t, cat.Cycles(), domain.Cycle{"BTC/USDT", "ETH/BTC", "ETH/USDT"})
}
