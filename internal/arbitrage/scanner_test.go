package arbitrage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type evalFunc func(ctx context.Context, cycle domain.Cycle) Verdict

func (f evalFunc) Evaluate(ctx context.Context, cycle domain.Cycle, _, _ float64) Verdict {
	return f(ctx, cycle)
}

func makeCatalogue(n int) *domain.Catalogue {
	cycles := make([]domain.Cycle, n)
	for i := range cycles {
		x := fmt.Sprintf("X%03d", i)
		cycles[i] = domain.Cycle{x + "/USDT", x + "/BTC", "BTC/USDT"}
	}
	return domain.NewCatalogue(cycles, time.Now())
}

type memRecorder struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (r *memRecorder) Record(_ context.Context, opp domain.Opportunity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opps = append(r.opps, opp)
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	scans    int
	found    bool
}

func (o *countingObserver) EvaluationDone(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) ScanDone(_ time.Duration, found bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scans++
	o.found = found
}

func TestScanOnce_EmptyCatalogue(t *testing.T) {
	var calls atomic.Int32
	s := NewScanner(ScannerConfig{Evaluator: evalFunc(func(context.Context, domain.Cycle) Verdict {
		calls.Add(1)
		return Verdict{}
	})})

	assert.False(t, s.ScanOnce(context.Background(), domain.NewCatalogue(nil, time.Now()), ScanParams{}))
	assert.False(t, s.ScanOnce(context.Background(), nil, ScanParams{}))
	assert.Zero(t, calls.Load())
}

func TestScanOnce_NoOpportunityEvaluatesEverything(t *testing.T) {
	var calls atomic.Int32
	obs := &countingObserver{}
	s := NewScanner(ScannerConfig{
		Observer: obs,
		Evaluator: evalFunc(func(_ context.Context, c domain.Cycle) Verdict {
			calls.Add(1)
			if c[0] == "X003/USDT" {
				return Verdict{Outcome: OutcomeDataUnavailable}
			}
			return Verdict{Outcome: OutcomeNotProfitable}
		}),
	})

	found := s.ScanOnce(context.Background(), makeCatalogue(40), ScanParams{MaxParallel: 4})

	assert.False(t, found)
	assert.EqualValues(t, 40, calls.Load())
	assert.Equal(t, 1, obs.outcomes["data_unavailable"])
	assert.Equal(t, 39, obs.outcomes["not_profitable"])
	assert.Equal(t, 1, obs.scans)
	assert.False(t, obs.found)
}

func TestScanOnce_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	s := NewScanner(ScannerConfig{Evaluator: evalFunc(func(context.Context, domain.Cycle) Verdict {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return Verdict{Outcome: OutcomeNotProfitable}
	})})

	s.ScanOnce(context.Background(), makeCatalogue(60), ScanParams{MaxParallel: 3})

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestScanOnce_DefaultParallelism(t *testing.T) {
	var inFlight, peak atomic.Int32
	s := NewScanner(ScannerConfig{Evaluator: evalFunc(func(context.Context, domain.Cycle) Verdict {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return Verdict{Outcome: OutcomeNotProfitable}
	})})

	s.ScanOnce(context.Background(), makeCatalogue(30), ScanParams{})

	assert.LessOrEqual(t, peak.Load(), int32(DefaultMaxParallel))
}

func TestScanOnce_StopsAtFirstProfit(t *testing.T) {
	release := make(chan struct{})
	var launched atomic.Int32
	rec := &memRecorder{}
	s := NewScanner(ScannerConfig{
		Recorder: rec,
		Evaluator: evalFunc(func(_ context.Context, c domain.Cycle) Verdict {
			launched.Add(1)
			if c[0] == "X000/USDT" {
				return Verdict{Outcome: OutcomeProfitable, Opportunity: &domain.Opportunity{ID: "hit", Cycle: c}}
			}
			<-release
			return Verdict{Outcome: OutcomeProfitable, Opportunity: &domain.Opportunity{ID: "late", Cycle: c}}
		}),
	})

	found := s.ScanOnce(context.Background(), makeCatalogue(100), ScanParams{MaxParallel: 3})
	// Returned while the other evaluations are still blocked.
	close(release)

	require.True(t, found)
	assert.LessOrEqual(t, launched.Load(), int32(4))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.opps, 1)
	assert.Equal(t, "hit", rec.opps[0].ID)
}

func TestScanOnce_InFlightKeepsParentContext(t *testing.T) {
	release := make(chan struct{})
	errs := make(chan error, 10)
	s := NewScanner(ScannerConfig{Evaluator: evalFunc(func(ctx context.Context, c domain.Cycle) Verdict {
		if c[0] == "X000/USDT" {
			return Verdict{Outcome: OutcomeProfitable, Opportunity: &domain.Opportunity{}}
		}
		<-release
		errs <- ctx.Err()
		return Verdict{Outcome: OutcomeNotProfitable}
	})})

	require.True(t, s.ScanOnce(context.Background(), makeCatalogue(3), ScanParams{MaxParallel: 3}))
	close(release)

	for range 2 {
		select {
		case err := <-errs:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("in-flight evaluation did not finish")
		}
	}
}

func TestScanOnce_SingleCycle(t *testing.T) {
	cat := domain.NewCatalogue([]domain.Cycle{testCycle}, time.Now())
	rec := &memRecorder{}
	s := NewScanner(ScannerConfig{
		Evaluator: NewEvaluator(EvaluatorConfig{Books: books(100, 10, 1.02, 1000, 99, 1000)}),
		Recorder:  rec,
	})

	found := s.ScanOnce(context.Background(), cat, ScanParams{TradeAmount: 100, ProfitMargin: 0.003, MaxParallel: 5})

	require.True(t, found)
	require.Len(t, rec.opps, 1)
	assert.Equal(t, testCycle, rec.opps[0].Cycle)
	assert.True(t, rec.opps[0].Simulated)
}

func TestScanOnce_PanicCountsAsUnavailable(t *testing.T) {
	obs := &countingObserver{}
	s := NewScanner(ScannerConfig{
		Observer: obs,
		Evaluator: evalFunc(func(_ context.Context, c domain.Cycle) Verdict {
			if c[0] == "X001/USDT" {
				panic("bad book")
			}
			return Verdict{Outcome: OutcomeNotProfitable}
		}),
	})

	assert.False(t, s.ScanOnce(context.Background(), makeCatalogue(5), ScanParams{MaxParallel: 2}))
	assert.Equal(t, 1, obs.outcomes["data_unavailable"])
	assert.Equal(t, 4, obs.outcomes["not_profitable"])
}

func TestScanOnce_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	s := NewScanner(ScannerConfig{Evaluator: evalFunc(func(context.Context, domain.Cycle) Verdict {
		calls.Add(1)
		return Verdict{Outcome: OutcomeNotProfitable}
	})})

	assert.False(t, s.ScanOnce(ctx, makeCatalogue(50), ScanParams{MaxParallel: 5}))
	assert.Zero(t, calls.Load())
}

type blockingRecorder struct {
	err chan error
}

func (r *blockingRecorder) Record(ctx context.Context, _ domain.Opportunity) {
	<-ctx.Done()
	r.err <- ctx.Err()
}

func TestScanOnce_RecorderIsBounded(t *testing.T) {
	rec := &blockingRecorder{err: make(chan error, 1)}
	s := NewScanner(ScannerConfig{
		Recorder:      rec,
		RecordTimeout: 20 * time.Millisecond,
		Evaluator: evalFunc(func(_ context.Context, c domain.Cycle) Verdict {
			return Verdict{Outcome: OutcomeProfitable, Opportunity: &domain.Opportunity{ID: "slow", Cycle: c}}
		}),
	})

	start := time.Now()
	require.True(t, s.ScanOnce(context.Background(), makeCatalogue(1), ScanParams{}))
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, <-rec.err, context.DeadlineExceeded)
}
