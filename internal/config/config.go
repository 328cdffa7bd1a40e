// Package config defines the top-level configuration for the triangular
// arbitrage bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRIARB_* environment variables.
type Config struct {
	Exchange  ExchangeConfig  `toml:"exchange"`
	Scanner   ScannerConfig   `toml:"scanner"`
	Catalogue CatalogueConfig `toml:"catalogue"`
	Executor  ExecutorConfig  `toml:"executor"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ExchangeConfig holds Binance connectivity and credentials.
type ExchangeConfig struct {
	BaseURL             string   `toml:"base_url"`
	Sandbox             bool     `toml:"sandbox"`
	APIKey              string   `toml:"api_key"`
	Secret              string   `toml:"secret"`
	EncryptedSecretPath string   `toml:"encrypted_secret_path"`
	SecretPassword      string   `toml:"secret_password"`
	RequestsPerSecond   float64  `toml:"requests_per_second"`
	Burst               int      `toml:"burst"`
	RecvWindow          duration `toml:"recv_window"`
	Timeout             duration `toml:"timeout"`
}

// ScannerConfig holds the per-scan and outer-loop parameters.
type ScannerConfig struct {
	TradeAmount         float64  `toml:"trade_amount"`
	ProfitMargin        float64  `toml:"profit_margin"`
	CheckInterval       duration `toml:"check_interval"`
	MaxParallelRequests int      `toml:"max_parallel_requests"`
	OrderBookDepth      int      `toml:"order_book_depth"`
	FetchDelay          duration `toml:"fetch_delay"`
	RateLimitCooldown   duration `toml:"rate_limit_cooldown"`
	Simulate            bool     `toml:"simulate"`
	// SharedLimit caps depth fetches per SharedWindow across every instance
	// sharing the Redis server. Zero disables it.
	SharedLimit  int      `toml:"shared_limit"`
	SharedWindow duration `toml:"shared_window"`
}

// CatalogueConfig holds catalogue build and persistence parameters.
type CatalogueConfig struct {
	Path         string   `toml:"path"`
	ForceRebuild bool     `toml:"force_rebuild"`
	RebuildCron  string   `toml:"rebuild_cron"`
	BatchSize    int      `toml:"batch_size"`
	MaxWorkers   int      `toml:"max_workers"`
	Stablecoins  []string `toml:"stablecoins"`
	CacheKey     string   `toml:"cache_key"`
	CacheTTL     duration `toml:"cache_ttl"`
	S3Key        string   `toml:"s3_key"`
	LockTTL      duration `toml:"lock_ttl"`
}

// ExecutorConfig holds live-execution guards.
type ExecutorConfig struct {
	DedupWindow duration `toml:"dedup_window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// Namespace prefixes every key and channel.
	Namespace  string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled          bool     `toml:"enabled"`
	Endpoint         string   `toml:"endpoint"`
	Region           string   `toml:"region"`
	Bucket           string   `toml:"bucket"`
	AccessKey        string   `toml:"access_key"`
	SecretKey        string   `toml:"secret_key"`
	UseSSL           bool     `toml:"use_ssl"`
	ForcePathStyle   bool     `toml:"force_path_style"`
	ArchiveCron      string   `toml:"archive_cron"`
	ArchiveRetention duration `toml:"archive_retention"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			Sandbox:           true,
			RequestsPerSecond: 10,
			Burst:             10,
			RecvWindow:        duration{5 * time.Second},
			Timeout:           duration{10 * time.Second},
		},
		Scanner: ScannerConfig{
			TradeAmount:         100,
			ProfitMargin:        0.003,
			CheckInterval:       duration{3 * time.Second},
			MaxParallelRequests: 5,
			OrderBookDepth:      5,
			FetchDelay:          duration{100 * time.Millisecond},
			RateLimitCooldown:   duration{10 * time.Second},
			Simulate:            true,
			SharedWindow:        duration{time.Second},
		},
		Catalogue: CatalogueConfig{
			Path:        "triangular_paths.pb",
			RebuildCron: "0 4 * * *",
			BatchSize:   100_000,
			MaxWorkers:  6,
			Stablecoins: []string{"USDT", "USDC", "BUSD", "FDUSD"},
			CacheKey:    "catalogue",
			CacheTTL:    duration{24 * time.Hour},
			S3Key:       "catalogue/triangular_paths.pb",
			LockTTL:     duration{30 * time.Minute},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Namespace:  "triarb",
		},
		S3: S3Config{
			Endpoint:         "http://localhost:9000",
			Region:           "us-east-1",
			Bucket:           "triarb-data",
			ForcePathStyle:   true,
			ArchiveCron:      "0 3 1 * *",
			ArchiveRetention: duration{30 * 24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "triarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed", "execution_failed", "catalogue_rebuilt"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":  true,
	"build": true,
	"full":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ParseSchedule parses a standard five-field cron expression or a
// descriptor such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cron.ParseStandard(spec)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, build, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if !c.Scanner.Simulate {
		if c.Exchange.APIKey == "" {
			errs = append(errs, "exchange: api_key is required when scanner.simulate is false")
		}
		if c.Exchange.Secret == "" && c.Exchange.EncryptedSecretPath == "" {
			errs = append(errs, "exchange: secret or encrypted_secret_path is required when scanner.simulate is false")
		}
	}
	if c.Exchange.EncryptedSecretPath != "" && c.Exchange.SecretPassword == "" {
		errs = append(errs, "exchange: secret_password is required when encrypted_secret_path is set")
	}
	if c.Exchange.RequestsPerSecond <= 0 {
		errs = append(errs, "exchange: requests_per_second must be > 0")
	}

	// Scanner
	if c.Scanner.TradeAmount <= 0 {
		errs = append(errs, "scanner: trade_amount must be > 0")
	}
	if c.Scanner.ProfitMargin < 0 {
		errs = append(errs, "scanner: profit_margin must be >= 0")
	}
	if c.Scanner.CheckInterval.Duration <= 0 {
		errs = append(errs, "scanner: check_interval must be > 0")
	}
	if c.Scanner.MaxParallelRequests < 1 {
		errs = append(errs, "scanner: max_parallel_requests must be >= 1")
	}
	if c.Scanner.OrderBookDepth < 1 {
		errs = append(errs, "scanner: order_book_depth must be >= 1")
	}
	if c.Scanner.SharedLimit < 0 {
		errs = append(errs, "scanner: shared_limit must be >= 0")
	}

	// Catalogue
	if strings.TrimSpace(c.Catalogue.Path) == "" {
		errs = append(errs, "catalogue: path must not be empty")
	}
	if c.Catalogue.BatchSize < 1 {
		errs = append(errs, "catalogue: batch_size must be >= 1")
	}
	if c.Catalogue.MaxWorkers < 1 {
		errs = append(errs, "catalogue: max_workers must be >= 1")
	}
	if len(c.Catalogue.Stablecoins) == 0 {
		errs = append(errs, "catalogue: stablecoins must not be empty")
	}
	if c.Catalogue.RebuildCron != "" {
		if _, err := ParseSchedule(c.Catalogue.RebuildCron); err != nil {
			errs = append(errs, fmt.Sprintf("catalogue: rebuild_cron %q: %v", c.Catalogue.RebuildCron, err))
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveCron != "" {
			if _, err := ParseSchedule(c.S3.ArchiveCron); err != nil {
				errs = append(errs, fmt.Sprintf("s3: archive_cron %q: %v", c.S3.ArchiveCron, err))
			}
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Server
	if strings.EqualFold(c.Mode, "full") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
