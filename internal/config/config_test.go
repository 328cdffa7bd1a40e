package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100.0, cfg.Scanner.TradeAmount)
	assert.Equal(t, 0.003, cfg.Scanner.ProfitMargin)
	assert.Equal(t, 3*time.Second, cfg.Scanner.CheckInterval.Duration)
	assert.Equal(t, 5, cfg.Scanner.MaxParallelRequests)
	assert.Equal(t, "triangular_paths.pb", cfg.Catalogue.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[scanner]
trade_amount = 250
check_interval = "1500ms"
simulate = false

[catalogue]
stablecoins = ["USDT"]
`), 0o600))

	t.Setenv("BINANCE_API_KEY", "key-from-env")
	t.Setenv("BINANCE_SECRET", "secret-from-env")
	t.Setenv("TRIARB_SCANNER_PROFIT_MARGIN", "0.01")
	t.Setenv("TRIARB_NOTIFY_EVENTS", "trade_executed, ,execution_failed")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 250.0, cfg.Scanner.TradeAmount)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scanner.CheckInterval.Duration)
	assert.Equal(t, 0.01, cfg.Scanner.ProfitMargin)
	assert.Equal(t, []string{"USDT"}, cfg.Catalogue.Stablecoins)
	assert.Equal(t, "key-from-env", cfg.Exchange.APIKey)
	assert.Equal(t, []string{"trade_executed", "execution_failed"}, cfg.Notify.Events)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Scanner, cfg.Scanner)
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Scanner.Simulate = false
	cfg.Scanner.TradeAmount = 0
	cfg.Scanner.MaxParallelRequests = 0
	cfg.Catalogue.RebuildCron = "every tuesday"
	cfg.Postgres.Enabled = true
	cfg.Postgres.PoolMinConns = 50

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		"exchange: api_key is required",
		"scanner: trade_amount",
		"scanner: max_parallel_requests",
		"catalogue: rebuild_cron",
		"postgres: pool_min_conns",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("0 4 * * *")
	require.NoError(t, err)
	from := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 4, 0, 0, 0, time.UTC), s.Next(from))

	_, err = ParseSchedule("@daily")
	assert.NoError(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Exchange.APIKey = "k"
	cfg.Exchange.Secret = "s"
	cfg.Notify.TelegramToken = "t"

	red := RedactedConfig(&cfg)

	assert.Equal(t, redacted, red.Exchange.APIKey)
	assert.Equal(t, redacted, red.Exchange.Secret)
	assert.Equal(t, redacted, red.Notify.TelegramToken)
	assert.Empty(t, red.Redis.Password)
	assert.Equal(t, "k", cfg.Exchange.APIKey)

	red.Catalogue.Stablecoins[0] = "XXX"
	assert.Equal(t, "USDT", cfg.Catalogue.Stablecoins[0])
}
