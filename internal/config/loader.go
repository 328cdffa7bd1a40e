package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRIARB_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the bot runs on
// defaults and environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRIARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). BINANCE_API_KEY and BINANCE_SECRET are honoured as well.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.APIKey, "BINANCE_API_KEY")
	setStr(&cfg.Exchange.Secret, "BINANCE_SECRET")
	setStr(&cfg.Exchange.APIKey, "TRIARB_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.Secret, "TRIARB_EXCHANGE_SECRET")
	setStr(&cfg.Exchange.EncryptedSecretPath, "TRIARB_EXCHANGE_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Exchange.SecretPassword, "TRIARB_EXCHANGE_SECRET_PASSWORD")
	setStr(&cfg.Exchange.BaseURL, "TRIARB_EXCHANGE_BASE_URL")
	setBool(&cfg.Exchange.Sandbox, "TRIARB_EXCHANGE_SANDBOX")
	setFloat64(&cfg.Exchange.RequestsPerSecond, "TRIARB_EXCHANGE_REQUESTS_PER_SECOND")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.TradeAmount, "TRIARB_SCANNER_TRADE_AMOUNT")
	setFloat64(&cfg.Scanner.ProfitMargin, "TRIARB_SCANNER_PROFIT_MARGIN")
	setDuration(&cfg.Scanner.CheckInterval, "TRIARB_SCANNER_CHECK_INTERVAL")
	setInt(&cfg.Scanner.MaxParallelRequests, "TRIARB_SCANNER_MAX_PARALLEL_REQUESTS")
	setInt(&cfg.Scanner.OrderBookDepth, "TRIARB_SCANNER_ORDER_BOOK_DEPTH")
	setBool(&cfg.Scanner.Simulate, "TRIARB_SCANNER_SIMULATE")
	setInt(&cfg.Scanner.SharedLimit, "TRIARB_SCANNER_SHARED_LIMIT")

	// ── Catalogue ──
	setStr(&cfg.Catalogue.Path, "TRIARB_CATALOGUE_PATH")
	setBool(&cfg.Catalogue.ForceRebuild, "TRIARB_CATALOGUE_FORCE_REBUILD")
	setStr(&cfg.Catalogue.RebuildCron, "TRIARB_CATALOGUE_REBUILD_CRON")
	setInt(&cfg.Catalogue.BatchSize, "TRIARB_CATALOGUE_BATCH_SIZE")
	setInt(&cfg.Catalogue.MaxWorkers, "TRIARB_CATALOGUE_MAX_WORKERS")
	setStringSlice(&cfg.Catalogue.Stablecoins, "TRIARB_CATALOGUE_STABLECOINS")

	// ── Executor ──
	setDuration(&cfg.Executor.DedupWindow, "TRIARB_EXECUTOR_DEDUP_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRIARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRIARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRIARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRIARB_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "TRIARB_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Namespace, "TRIARB_REDIS_NAMESPACE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRIARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRIARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRIARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRIARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRIARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRIARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRIARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRIARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchiveCron, "TRIARB_S3_ARCHIVE_CRON")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRIARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRIARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRIARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRIARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRIARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRIARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRIARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRIARB_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "TRIARB_POSTGRES_RUN_MIGRATIONS")

	// ── Server ──
	setInt(&cfg.Server.Port, "TRIARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRIARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRIARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TRIARB_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRIARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRIARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRIARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRIARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRIARB_MODE")
	setStr(&cfg.LogLevel, "TRIARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
