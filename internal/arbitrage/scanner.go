package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// DefaultMaxParallel bounds concurrent evaluations when ScanParams leaves
	// MaxParallel unset.
	DefaultMaxParallel = 5
	// DefaultRecordTimeout bounds how long a profitable scan waits on the
	// recorder before returning.
	DefaultRecordTimeout = 5 * time.Second
)

// CycleEvaluator is the part of Evaluator the scanner depends on.
type CycleEvaluator interface {
	Evaluate(ctx context.Context, cycle domain.Cycle, tradeAmount, profitMargin float64) Verdict
}

// Recorder receives the opportunity that ended a scan.
type Recorder interface {
	Record(ctx context.Context, opp domain.Opportunity)
}

// Observer receives scan and evaluation counts.
type Observer interface {
	EvaluationDone(outcome string)
	ScanDone(d time.Duration, found bool)
}

// ScanParams are the per-scan knobs.
type ScanParams struct {
	TradeAmount  float64
	ProfitMargin float64
	MaxParallel  int
}

// ScannerConfig configures a Scanner. Recorder and Observer are optional.
type ScannerConfig struct {
	Evaluator     CycleEvaluator
	Recorder      Recorder
	Observer      Observer
	RecordTimeout time.Duration
	Logger        *slog.Logger
}

// Scanner evaluates every cycle of a catalogue with bounded concurrency and
// stops launching work at the first profitable result.
type Scanner struct {
	eval          CycleEvaluator
	recorder      Recorder
	recordTimeout time.Duration
	observer      Observer
	logger        *slog.Logger
}

// NewScanner creates a Scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RecordTimeout
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	return &Scanner{
		eval:          cfg.Evaluator,
		recorder:      cfg.Recorder,
		recordTimeout: timeout,
		observer:      cfg.Observer,
		logger:        logger.With(slog.String("component", "scanner")),
	}
}

// ScanOnce evaluates the catalogue and reports whether a profitable cycle
// was found. Results are consumed in completion order. On the first
// profitable result no further evaluations are started and ScanOnce returns
// without waiting for those still in flight; their results are dropped.
func (s *Scanner) ScanOnce(ctx context.Context, cat *domain.Catalogue, p ScanParams) bool {
	total := cat.Len()
	if total == 0 {
		return false
	}
	start := time.Now()
	limit := p.MaxParallel
	if limit <= 0 {
		limit = DefaultMaxParallel
	}

	scanCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Buffered to total so abandoned evaluations never block on send.
	results := make(chan Verdict, total)
	go s.launch(ctx, scanCtx, cat, p, limit, results)

	var done, unavailable int
	for v := range results {
		done++
		if s.observer != nil {
			s.observer.EvaluationDone(v.Outcome.String())
		}
		switch v.Outcome {
		case OutcomeDataUnavailable:
			unavailable++
		case OutcomeProfitable:
			stop()
			s.finish(ctx, start, true, done, unavailable, total)
			if v.Opportunity != nil {
				s.record(ctx, *v.Opportunity)
			}
			return true
		}
	}

	s.finish(ctx, start, false, done, unavailable, total)
	return false
}

// record hands opp to the recorder under a deadline so a slow store or
// notifier cannot stall the next tick.
func (s *Scanner) record(ctx context.Context, opp domain.Opportunity) {
	if s.recorder == nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, s.recordTimeout)
	defer cancel()
	s.recorder.Record(rctx, opp)
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		s.logger.WarnContext(ctx, "recording opportunity timed out",
			slog.String("id", opp.ID),
			slog.Duration("timeout", s.recordTimeout),
		)
	}
}

// launch starts one evaluation per cycle, at most limit at a time, until
// the catalogue is exhausted or scanCtx is cancelled. Evaluations run under
// ctx so cancelling the scan does not abort work already started.
func (s *Scanner) launch(ctx, scanCtx context.Context, cat *domain.Catalogue, p ScanParams, limit int, results chan<- Verdict) {
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(results)
	}()

	for i := range cat.Len() {
		if err := sem.Acquire(scanCtx, 1); err != nil {
			return
		}
		// Acquire can succeed on an already cancelled context.
		if scanCtx.Err() != nil {
			sem.Release(1)
			return
		}
		cycle := cat.At(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			results <- s.evaluate(ctx, cycle, p)
		}()
	}
}

func (s *Scanner) evaluate(ctx context.Context, cycle domain.Cycle, p ScanParams) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "evaluation panicked",
				slog.String("cycle", cycle.String()),
				slog.String("panic", fmt.Sprint(r)),
			)
			v = Verdict{Outcome: OutcomeDataUnavailable}
		}
	}()
	return s.eval.Evaluate(ctx, cycle, p.TradeAmount, p.ProfitMargin)
}

func (s *Scanner) finish(ctx context.Context, start time.Time, found bool, done, unavailable, total int) {
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.ScanDone(elapsed, found)
	}
	s.logger.DebugContext(ctx, "scan finished",
		slog.Bool("found", found),
		slog.Int("evaluated", done),
		slog.Int("unavailable", unavailable),
		slog.Int("cycles", total),
		slog.Duration("elapsed", elapsed),
	)
}
