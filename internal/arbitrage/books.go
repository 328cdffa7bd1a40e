package arbitrage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// DefaultFetchDelay is the pause before every order book request.
	DefaultFetchDelay = 100 * time.Millisecond
	// DefaultCooldown is how long a fetch backs off after a rate-limit reply.
	DefaultCooldown = 10 * time.Second
	// DefaultDepth is the number of levels requested per side.
	DefaultDepth = 5

	sharedLimiterKey = "exchange:depth"
)

// BookSource returns a fresh order book for a symbol, or false when no
// usable data could be obtained.
type BookSource interface {
	Book(ctx context.Context, symbol string) (*domain.OrderBook, bool)
}

// ThrottledBooksConfig configures ThrottledBooks.
type ThrottledBooksConfig struct {
	Fetcher  domain.OrderBookFetcher
	Depth    int
	Delay    time.Duration
	Cooldown time.Duration

	// Shared optionally caps fetches across every bot instance that uses
	// the same limiter backend. SharedLimit requests per SharedWindow.
	Shared       domain.RateLimiter
	SharedLimit  int
	SharedWindow time.Duration

	Logger *slog.Logger
}

// ThrottledBooks wraps an OrderBookFetcher with a fixed pre-fetch delay and
// a cooldown after rate-limit replies. Fetch failures are logged and turned
// into "no data".
type ThrottledBooks struct {
	fetcher      domain.OrderBookFetcher
	depth        int
	delay        time.Duration
	cooldown     time.Duration
	shared       domain.RateLimiter
	sharedLimit  int
	sharedWindow time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
}

// NewThrottledBooks creates a ThrottledBooks. Zero durations and depth fall
// back to the defaults; a negative Delay disables the pre-fetch pause.
func NewThrottledBooks(cfg ThrottledBooksConfig) *ThrottledBooks {
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}
	delay := cfg.Delay
	if delay == 0 {
		delay = DefaultFetchDelay
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ThrottledBooks{
		fetcher:      cfg.Fetcher,
		depth:        depth,
		delay:        delay,
		cooldown:     cooldown,
		shared:       cfg.Shared,
		sharedLimit:  cfg.SharedLimit,
		sharedWindow: cfg.SharedWindow,
		sleep:        sleepCtx,
		logger:       logger.With(slog.String("component", "book_source")),
	}
}

// Book implements BookSource.
func (t *ThrottledBooks) Book(ctx context.Context, symbol string) (*domain.OrderBook, bool) {
	if t.delay > 0 {
		if err := t.sleep(ctx, t.delay); err != nil {
			return nil, false
		}
	}
	if t.shared != nil && t.sharedLimit > 0 {
		if err := t.shared.Wait(ctx, sharedLimiterKey, t.sharedLimit, t.sharedWindow); err != nil {
			t.logger.WarnContext(ctx, "shared rate limiter unavailable",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			if ctx.Err() != nil {
				return nil, false
			}
		}
	}

	book, err := t.fetcher.FetchOrderBook(ctx, symbol, t.depth)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			t.logger.WarnContext(ctx, "rate limited, cooling down",
				slog.String("symbol", symbol),
				slog.Duration("cooldown", t.cooldown),
			)
			_ = t.sleep(ctx, t.cooldown)
			return nil, false
		}
		if ctx.Err() == nil {
			t.logger.WarnContext(ctx, "fetch order book failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	return &book, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ BookSource = (*ThrottledBooks)(nil)
