package arbitrage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type fakeProvider struct {
	mu         sync.Mutex
	initial    *domain.Catalogue
	loadErr    error
	rebuilt    *domain.Catalogue
	rebuildErr error
	rebuilds   int
}

func (p *fakeProvider) LoadOrBuild(context.Context) (*domain.Catalogue, error) {
	return p.initial, p.loadErr
}

func (p *fakeProvider) Rebuild(context.Context) (*domain.Catalogue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebuilds++
	if p.rebuildErr != nil {
		return nil, p.rebuildErr
	}
	return p.rebuilt, nil
}

func (p *fakeProvider) rebuildCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuilds
}

// tickScanner records the size of every catalogue it is asked to scan.
type tickScanner struct {
	mu    sync.Mutex
	sizes []int
	ticks chan struct{}
}

func newTickScanner() *tickScanner {
	return &tickScanner{ticks: make(chan struct{}, 100)}
}

func (s *tickScanner) ScanOnce(_ context.Context, cat *domain.Catalogue, _ ScanParams) bool {
	s.mu.Lock()
	s.sizes = append(s.sizes, cat.Len())
	s.mu.Unlock()
	s.ticks <- struct{}{}
	return false
}

func (s *tickScanner) seen() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func waitTick(t *testing.T, s *tickScanner) {
	t.Helper()
	select {
	case <-s.ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner was not called")
	}
}

func runAsync(r *Runner) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func TestRunner_ScansRepeatedly(t *testing.T) {
	sc := newTickScanner()
	r := NewRunner(RunnerConfig{
		Catalogues: &fakeProvider{initial: makeCatalogue(3)},
		Scanner:    sc,
		Interval:   5 * time.Millisecond,
	})

	cancel, done := runAsync(r)
	waitTick(t, sc)
	waitTick(t, sc)
	waitTick(t, sc)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, 3, r.Catalogue().Len())
	for _, n := range sc.seen() {
		assert.Equal(t, 3, n)
	}
}

func TestRunner_InitialLoadFailure(t *testing.T) {
	boom := errors.New("exchange down")
	r := NewRunner(RunnerConfig{
		Catalogues: &fakeProvider{loadErr: boom},
		Scanner:    newTickScanner(),
	})

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunner_RebuildBetweenTicks(t *testing.T) {
	sc := newTickScanner()
	prov := &fakeProvider{initial: makeCatalogue(2), rebuilt: makeCatalogue(7)}
	r := NewRunner(RunnerConfig{Catalogues: prov, Scanner: sc, Interval: 20 * time.Millisecond})

	cancel, done := runAsync(r)
	defer func() {
		cancel()
		<-done
	}()

	waitTick(t, sc)
	require.True(t, r.RequestRebuild())

	require.Eventually(t, func() bool {
		seen := sc.seen()
		return len(seen) > 0 && seen[len(seen)-1] == 7
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, prov.rebuildCount())
	assert.Equal(t, 7, r.Catalogue().Len())
}

func TestRunner_FailedRebuildKeepsCatalogue(t *testing.T) {
	sc := newTickScanner()
	prov := &fakeProvider{initial: makeCatalogue(4), rebuildErr: errors.New("build failed")}
	r := NewRunner(RunnerConfig{Catalogues: prov, Scanner: sc, Interval: 10 * time.Millisecond})

	cancel, done := runAsync(r)
	waitTick(t, sc)
	require.True(t, r.RequestRebuild())
	require.Eventually(t, func() bool { return prov.rebuildCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	waitTick(t, sc)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 4, r.Catalogue().Len())
	for _, n := range sc.seen() {
		assert.Equal(t, 4, n)
	}
}

func TestRunner_RequestRebuildCoalesces(t *testing.T) {
	r := NewRunner(RunnerConfig{Catalogues: &fakeProvider{}, Scanner: newTickScanner()})

	assert.True(t, r.RequestRebuild())
	assert.False(t, r.RequestRebuild())
	assert.Nil(t, r.Catalogue())
}
