// Package arbitrage evaluates catalogue cycles against live order books and
// coordinates bounded, early-terminating scans over the catalogue.
package arbitrage

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Outcome classifies one evaluation.
type Outcome int

const (
	OutcomeNotProfitable Outcome = iota
	OutcomeProfitable
	OutcomeDataUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProfitable:
		return "profitable"
	case OutcomeDataUnavailable:
		return "data_unavailable"
	default:
		return "not_profitable"
	}
}

// Verdict is the result of evaluating one cycle. Opportunity is set only for
// OutcomeProfitable.
type Verdict struct {
	Outcome     Outcome
	Opportunity *domain.Opportunity
}

// Gateway executes the three legs of a profitable cycle.
type Gateway interface {
	ExecuteCycle(ctx context.Context, cycle domain.Cycle, amount float64) ([]domain.OrderResult, error)
}

// EvaluatorConfig configures an Evaluator.
type EvaluatorConfig struct {
	Books BookSource
	// Gateway is used only when Simulate is false.
	Gateway  Gateway
	Simulate bool
	Logger   *slog.Logger
}

// Evaluator prices a cycle from the best level of each of its three books.
type Evaluator struct {
	books    BookSource
	gateway  Gateway
	simulate bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator. Without a gateway it always simulates.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		books:    cfg.Books,
		gateway:  cfg.Gateway,
		simulate: cfg.Simulate || cfg.Gateway == nil,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "evaluator")),
	}
}

// quote is the top-of-book data one evaluation needs.
type quote struct {
	ask1, askVol1 float64
	bid2, bidVol2 float64
	bid3, bidVol3 float64
}

// Evaluate fetches the three books and simulates the cycle with
// tradeAmount units of the stablecoin. Leg quantities are capped at the
// volume of the best level, so a thin book produces a partial walk.
//
// The middle leg is always priced at its bid and multiplied, whichever way
// round the pair is listed.
func (e *Evaluator) Evaluate(ctx context.Context, cycle domain.Cycle, tradeAmount, profitMargin float64) Verdict {
	q, ok := e.fetchQuote(ctx, cycle)
	if !ok {
		return Verdict{Outcome: OutcomeDataUnavailable}
	}

	amount1 := math.Min(tradeAmount/q.ask1, q.askVol1)
	amount2 := math.Min(amount1*q.bid2, q.bidVol2)
	amount3 := math.Min(amount2*q.bid3, q.bidVol3)
	profit := amount3 - tradeAmount
	profitPct := profit / tradeAmount

	if !(profitPct > profitMargin) {
		return Verdict{Outcome: OutcomeNotProfitable}
	}

	opp := &domain.Opportunity{
		ID:          uuid.New().String(),
		Cycle:       cycle,
		TradeAmount: tradeAmount,
		Amounts:     [3]float64{amount1, amount2, amount3},
		Ask1:        q.ask1,
		Bid2:        q.bid2,
		Bid3:        q.bid3,
		Profit:      profit,
		ProfitPct:   profitPct,
		Simulated:   e.simulate,
		DetectedAt:  e.now().UTC(),
	}

	e.logger.InfoContext(ctx, "arbitrage opportunity",
		slog.String("cycle", cycle.String()),
		slog.Float64("profit", profit),
		slog.Float64("profit_pct", profitPct*100),
	)

	if e.simulate {
		e.logger.InfoContext(ctx, "simulated trade sequence",
			slog.String("buy", cycle[0]),
			slog.Float64("buy_amount", amount1),
			slog.String("sell_1", cycle[1]),
			slog.Float64("sell_1_amount", amount1*q.bid2),
			slog.String("sell_2", cycle[2]),
			slog.Float64("sell_2_amount", amount2*q.bid3),
		)
		return Verdict{Outcome: OutcomeProfitable, Opportunity: opp}
	}

	if _, err := e.gateway.ExecuteCycle(ctx, cycle, amount1); err != nil {
		opp.ExecError = err.Error()
		e.logger.ErrorContext(ctx, "cycle execution failed",
			slog.String("cycle", cycle.String()),
			slog.String("error", err.Error()),
		)
	} else {
		opp.Executed = true
	}
	return Verdict{Outcome: OutcomeProfitable, Opportunity: opp}
}

func (e *Evaluator) fetchQuote(ctx context.Context, cycle domain.Cycle) (quote, bool) {
	var q quote

	b1, ok := e.books.Book(ctx, cycle[0])
	if !ok {
		return q, false
	}
	ask, ok := b1.BestAsk()
	if !ok || ask.Price <= 0 {
		return q, false
	}
	q.ask1, q.askVol1 = ask.Price, ask.Size

	b2, ok := e.books.Book(ctx, cycle[1])
	if !ok {
		return q, false
	}
	bid, ok := b2.BestBid()
	if !ok || bid.Price <= 0 {
		return q, false
	}
	q.bid2, q.bidVol2 = bid.Price, bid.Size

	b3, ok := e.books.Book(ctx, cycle[2])
	if !ok {
		return q, false
	}
	bid, ok = b3.BestBid()
	if !ok || bid.Price <= 0 {
		return q, false
	}
	q.bid3, q.bidVol3 = bid.Price, bid.Size

	return q, true
}
