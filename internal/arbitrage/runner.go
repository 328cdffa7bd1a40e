package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// DefaultCheckInterval is the pause between scans.
const DefaultCheckInterval = 3 * time.Second

// CatalogueProvider loads and rebuilds the catalogue.
type CatalogueProvider interface {
	LoadOrBuild(ctx context.Context) (*domain.Catalogue, error)
	Rebuild(ctx context.Context) (*domain.Catalogue, error)
}

// CatalogueScanner is the part of Scanner the runner depends on.
type CatalogueScanner interface {
	ScanOnce(ctx context.Context, cat *domain.Catalogue, p ScanParams) bool
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Catalogues CatalogueProvider
	Scanner    CatalogueScanner
	Params     ScanParams
	Interval   time.Duration
	Logger     *slog.Logger
}

// Runner owns the active catalogue and drives the scan loop. Rebuilds are
// served by the loop goroutine between scans, so a build never overlaps a
// scan.
type Runner struct {
	catalogues CatalogueProvider
	scanner    CatalogueScanner
	params     ScanParams
	interval   time.Duration
	rebuild    chan struct{}
	logger     *slog.Logger

	mu      sync.RWMutex
	current *domain.Catalogue
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		catalogues: cfg.Catalogues,
		scanner:    cfg.Scanner,
		params:     cfg.Params,
		interval:   interval,
		rebuild:    make(chan struct{}, 1),
		logger:     logger.With(slog.String("component", "runner")),
	}
}

// Catalogue returns the catalogue currently being scanned, or nil before
// the first load.
func (r *Runner) Catalogue() *domain.Catalogue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// RequestRebuild queues a rebuild for the next gap between scans. It
// reports false if one is already queued.
func (r *Runner) RequestRebuild() bool {
	select {
	case r.rebuild <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run loads the catalogue and scans it every interval until ctx is
// cancelled. It only returns an error if the initial load fails.
func (r *Runner) Run(ctx context.Context) error {
	cat, err := r.catalogues.LoadOrBuild(ctx)
	if err != nil {
		return fmt.Errorf("runner: load catalogue: %w", err)
	}
	r.setCatalogue(cat)
	r.logger.InfoContext(ctx, "runner started",
		slog.Int("cycles", cat.Len()),
		slog.Duration("interval", r.interval),
		slog.Int("max_parallel", r.params.MaxParallel),
	)
	defer r.logger.Info("runner stopped")

	for {
		found := r.scanner.ScanOnce(ctx, r.Catalogue(), r.params)
		if ctx.Err() != nil {
			return nil
		}
		if found {
			r.logger.InfoContext(ctx, "opportunity found this tick")
		} else {
			r.logger.DebugContext(ctx, "no opportunity this tick")
		}

		if !r.wait(ctx) {
			return nil
		}
	}
}

// wait sleeps for one interval, serving queued rebuilds meanwhile. It
// returns false once ctx is cancelled.
func (r *Runner) wait(ctx context.Context) bool {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-r.rebuild:
			r.doRebuild(ctx)
		}
	}
}

func (r *Runner) doRebuild(ctx context.Context) {
	prev := r.Catalogue()
	cat, err := r.catalogues.Rebuild(ctx)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrLockHeld) || ctx.Err() != nil {
			level = slog.LevelWarn
		}
		r.logger.Log(ctx, level, "catalogue rebuild failed, keeping previous",
			slog.Int("cycles", prev.Len()),
			slog.String("error", err.Error()),
		)
		return
	}
	r.setCatalogue(cat)
	r.logger.InfoContext(ctx, "catalogue replaced",
		slog.Int("previous", prev.Len()),
		slog.Int("cycles", cat.Len()),
	)
}

func (r *Runner) setCatalogue(cat *domain.Catalogue) {
	r.mu.Lock()
	r.current = cat
	r.mu.Unlock()
}
