package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
	"github.com/alanyoungcy/triarb/internal/metrics"
	"github.com/alanyoungcy/triarb/internal/notify"
	"github.com/alanyoungcy/triarb/internal/triangle"
)

const (
	// BuildLockKey serialises catalogue builds across bot instances.
	BuildLockKey = "catalogue:build"
	// DefaultBuildLockTTL bounds how long a crashed builder can hold the lock.
	DefaultBuildLockTTL = 30 * time.Minute

	exampleCycles = 5
)

// CatalogueBuilder validates candidate triangles into a catalogue.
type CatalogueBuilder interface {
	Build(ctx context.Context, active domain.PairSet, currencies []string) (*domain.Catalogue, triangle.BuildStats, error)
}

// CatalogueConfig wires a CatalogueService. Locks, Audit, Notifier, Bus and
// Hub are optional.
type CatalogueConfig struct {
	Markets      domain.MarketLister
	Builder      CatalogueBuilder
	Store        domain.CatalogueStore
	Locks        domain.LockManager
	LockTTL      time.Duration
	Audit        domain.AuditStore
	Notifier     Notifier
	Bus          domain.SignalBus
	Hub          Broadcaster
	ForceRebuild bool
	Logger       *slog.Logger
}

// CatalogueService loads the persisted catalogue or builds a fresh one from
// the exchange's market listing.
type CatalogueService struct {
	markets  domain.MarketLister
	builder  CatalogueBuilder
	store    domain.CatalogueStore
	locks    domain.LockManager
	lockTTL  time.Duration
	audit    domain.AuditStore
	notifier Notifier
	events   eventPublisher
	force    bool
	logger   *slog.Logger
}

// NewCatalogueService creates a CatalogueService.
func NewCatalogueService(cfg CatalogueConfig) *CatalogueService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "catalogue_service"))
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultBuildLockTTL
	}
	return &CatalogueService{
		markets:  cfg.Markets,
		builder:  cfg.Builder,
		store:    cfg.Store,
		locks:    cfg.Locks,
		lockTTL:  ttl,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		events:   eventPublisher{bus: cfg.Bus, hub: cfg.Hub, logger: logger},
		force:    cfg.ForceRebuild,
		logger:   logger,
	}
}

// LoadOrBuild returns the persisted catalogue, rebuilding when none can be
// read, the saved one holds no cycles, or a rebuild is forced. A force flag applies to the first call only.
func (s *CatalogueService) LoadOrBuild(ctx context.Context) (*domain.Catalogue, error) {
	if s.force {
		s.force = false
		s.logger.InfoContext(ctx, "forced catalogue rebuild")
		return s.Rebuild(ctx)
	}

	cat, err := s.store.Load(ctx)
	if err == nil && cat.Len() == 0 {
		err = fmt.Errorf("catalogue_service: %s store: %w", s.store.Name(), domain.ErrEmptyCatalogue)
	}
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "loaded catalogue",
			slog.String("store", s.store.Name()),
			slog.Int("cycles", cat.Len()),
			slog.Time("built_at", cat.BuiltAt()),
		)
		metrics.SetCatalogueSize(cat.Len())
		return cat, nil
	case errors.Is(err, domain.ErrNotFound):
		s.logger.InfoContext(ctx, "no saved catalogue, building")
	case errors.Is(err, domain.ErrEmptyCatalogue):
		s.logger.WarnContext(ctx, "saved catalogue has no cycles, rebuilding",
			slog.String("error", err.Error()),
		)
	default:
		s.logger.WarnContext(ctx, "saved catalogue unreadable, rebuilding",
			slog.String("error", err.Error()),
		)
	}
	return s.Rebuild(ctx)
}

// Rebuild lists markets, builds a new catalogue and persists it. On any
// error nothing is saved.
func (s *CatalogueService) Rebuild(ctx context.Context) (*domain.Catalogue, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, BuildLockKey, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("catalogue_service: acquire build lock: %w", err)
		}
		defer unlock()
	}

	start := time.Now()
	cat, stats, err := s.build(ctx)
	metrics.RecordCatalogueBuild(err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, cat); err != nil {
		return nil, fmt.Errorf("catalogue_service: save catalogue: %w", err)
	}
	metrics.SetCatalogueSize(cat.Len())

	s.logger.InfoContext(ctx, "catalogue rebuilt",
		slog.Int("candidates", stats.Generated),
		slog.Int("cycles", stats.Validated),
		slog.Int("batches", stats.Batches),
		slog.Int("workers", stats.Workers),
		slog.Duration("duration", stats.Duration),
	)
	for i, c := range cat.Head(exampleCycles) {
		s.logger.InfoContext(ctx, "example cycle", slog.Int("n", i+1), slog.String("cycle", c.String()))
	}

	s.afterBuild(ctx, cat, stats)
	return cat, nil
}

func (s *CatalogueService) build(ctx context.Context) (*domain.Catalogue, triangle.BuildStats, error) {
	markets, err := s.markets.LoadMarkets(ctx)
	if err != nil {
		return nil, triangle.BuildStats{}, fmt.Errorf("catalogue_service: load markets: %w", err)
	}
	active, currencies := domain.ActiveUniverse(markets)
	s.logger.InfoContext(ctx, "loaded markets",
		slog.Int("markets", len(markets)),
		slog.Int("active_pairs", len(active)),
		slog.Int("currencies", len(currencies)),
	)

	cat, stats, err := s.builder.Build(ctx, active, currencies)
	if err != nil {
		return nil, stats, fmt.Errorf("catalogue_service: build: %w", err)
	}
	return cat, stats, nil
}

// afterBuild runs the best-effort side effects of a successful rebuild.
func (s *CatalogueService) afterBuild(ctx context.Context, cat *domain.Catalogue, stats triangle.BuildStats) {
	detail := map[string]any{
		"store":      s.store.Name(),
		"candidates": stats.Generated,
		"cycles":     stats.Validated,
		"duration":   stats.Duration.String(),
		"built_at":   cat.BuiltAt(),
	}
	if s.audit != nil {
		if err := s.audit.Log(ctx, "catalogue.rebuilt", detail); err != nil {
			s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
		}
	}
	s.events.publish(ctx, ChannelCatalogue, "catalogue_rebuilt", detail)
	if s.notifier != nil {
		msg := fmt.Sprintf("%d cycles from %d candidates in %s", stats.Validated, stats.Generated, stats.Duration.Round(time.Millisecond))
		if err := s.notifier.Notify(ctx, notify.EventCatalogueRebuilt, "Catalogue rebuilt", msg); err != nil {
			s.logger.WarnContext(ctx, "notify failed", slog.String("error", err.Error()))
		}
	}
}
