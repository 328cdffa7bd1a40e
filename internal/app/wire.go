package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/triarb/internal/blob/s3"
	"github.com/alanyoungcy/triarb/internal/cache/redis"
	"github.com/alanyoungcy/triarb/internal/catalogue"
	"github.com/alanyoungcy/triarb/internal/config"
	"github.com/alanyoungcy/triarb/internal/crypto"
	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/pipeline"
	"github.com/alanyoungcy/triarb/internal/platform/binance"
	"github.com/alanyoungcy/triarb/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the modes need. The
// optional backends (Postgres, Redis, S3) leave their fields nil when
// disabled.
type Dependencies struct {
	Exchange *binance.Client

	// Catalogue persistence: the file store, mirrored to Redis and S3 when
	// those are enabled.
	CatalogueStore domain.CatalogueStore
	CatalogueFile  *catalogue.FileStore

	// Postgres
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore

	// Redis
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// S3
	Archiver pipeline.OpportunityArchiver

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{}

	// --- Exchange ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Exchange.Secret,
		EncryptedSecretPath: cfg.Exchange.EncryptedSecretPath,
		Password:            cfg.Exchange.SecretPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: exchange secret: %w", err))
	}
	deps.Exchange = binance.NewClient(binance.Config{
		BaseURL:           cfg.Exchange.BaseURL,
		Sandbox:           cfg.Exchange.Sandbox,
		Auth:              &crypto.HMACAuth{Key: cfg.Exchange.APIKey, Secret: secret},
		RequestsPerSecond: cfg.Exchange.RequestsPerSecond,
		Burst:             cfg.Exchange.Burst,
		RecvWindow:        cfg.Exchange.RecvWindow.Duration,
		Timeout:           cfg.Exchange.Timeout.Duration,
		Logger:            logger,
	})

	// --- PostgreSQL ---
	var oppStore *postgres.OpportunityStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		oppStore = postgres.NewOpportunityStore(pool)
		deps.OpportunityStore = oppStore
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	primary := catalogue.NewFileStore(cfg.Catalogue.Path)
	deps.CatalogueFile = primary
	var mirrors []domain.CatalogueStore

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Namespace:  cfg.Redis.Namespace,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		mirrors = append(mirrors, catalogue.NewCacheStore(
			redis.NewBlobCache(redisClient),
			cfg.Catalogue.CacheKey,
			cfg.Catalogue.CacheTTL.Duration,
		))
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		if err := s3Client.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "s3 bucket unreachable, mirror writes will fail until it recovers",
				slog.String("bucket", s3Client.Bucket()),
				slog.String("error", err.Error()),
			)
		}

		mirrors = append(mirrors, catalogue.NewBlobStore(s3Client, cfg.Catalogue.S3Key))
		// Archiving needs the opportunity history in Postgres.
		if oppStore != nil {
			deps.Archiver = s3blob.NewArchiver(s3Client, oppStore, deps.AuditStore)
		}
	}

	deps.CatalogueStore = catalogue.NewMultiStore(primary, logger, mirrors...)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
