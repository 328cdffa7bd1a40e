// Package executor places the three market orders of a profitable cycle.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Config configures an Executor.
type Config struct {
	Placer domain.OrderPlacer
	// DedupWindow suppresses re-executing the same cycle within the window.
	// Zero disables the guard.
	DedupWindow time.Duration
	Logger      *slog.Logger
}

// Executor submits a cycle's legs in order: buy the first pair, then sell
// the second and third with the quantity the previous leg filled. A failed
// leg stops the sequence. Earlier fills are left in place.
type Executor struct {
	placer domain.OrderPlacer
	dedup  *Dedup
	logger *slog.Logger
}

// New creates an Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		placer: cfg.Placer,
		logger: logger.With(slog.String("component", "executor")),
	}
	if cfg.DedupWindow > 0 {
		e.dedup = NewDedup(cfg.DedupWindow)
	}
	return e
}

// ExecuteCycle places the three legs of cycle starting with amount units of
// the first pair's base. It returns the results of every leg that was
// accepted, plus the error of the leg that failed, if any.
func (e *Executor) ExecuteCycle(ctx context.Context, cycle domain.Cycle, amount float64) ([]domain.OrderResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("executor: amount %v: %w", amount, domain.ErrInvalidOrder)
	}
	if e.dedup != nil {
		e.dedup.Cleanup()
		if e.dedup.IsDuplicate(cycle.String()) {
			return nil, fmt.Errorf("executor: %s executed recently: %w", cycle, ErrDuplicate)
		}
	}

	results := make([]domain.OrderResult, 0, len(cycle))
	qty := amount
	for i, symbol := range cycle {
		side := domain.OrderSideSell
		if i == 0 {
			side = domain.OrderSideBuy
		}
		res, err := e.place(ctx, side, symbol, qty)
		if err != nil {
			e.logger.ErrorContext(ctx, "leg failed",
				slog.Int("leg", i+1),
				slog.String("symbol", symbol),
				slog.String("side", string(side)),
				slog.Float64("amount", qty),
				slog.String("error", err.Error()),
			)
			return results, fmt.Errorf("executor: leg %d %s %s: %w", i+1, side, symbol, err)
		}
		e.logger.InfoContext(ctx, "leg filled",
			slog.Int("leg", i+1),
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.String("order_id", res.OrderID),
			slog.String("status", string(res.Status)),
			slog.Float64("amount", qty),
			slog.Float64("filled", res.Filled),
		)
		results = append(results, res)

		if i < len(cycle)-1 && res.Filled <= 0 {
			return results, fmt.Errorf("executor: leg %d %s filled nothing: %w", i+1, symbol, domain.ErrInvalidOrder)
		}
		qty = res.Filled
	}
	return results, nil
}

func (e *Executor) place(ctx context.Context, side domain.OrderSide, symbol string, qty float64) (domain.OrderResult, error) {
	if side == domain.OrderSideBuy {
		return e.placer.CreateMarketBuyOrder(ctx, symbol, qty)
	}
	return e.placer.CreateMarketSellOrder(ctx, symbol, qty)
}
