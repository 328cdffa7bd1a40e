package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/triarb/internal/domain"
)

type scriptedFetcher struct {
	book  domain.OrderBook
	err   error
	limit int
	calls int
}

func (f *scriptedFetcher) FetchOrderBook(_ context.Context, symbol string, limit int) (domain.OrderBook, error) {
	f.calls++
	f.limit = limit
	if f.err != nil {
		return domain.OrderBook{}, f.err
	}
	b := f.book
	b.Symbol = symbol
	return b, nil
}

type recordedSleeps []time.Duration

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	*r = append(*r, d)
	return nil
}

func newTestBooks(f domain.OrderBookFetcher, sleeps *recordedSleeps) *ThrottledBooks {
	tb := NewThrottledBooks(ThrottledBooksConfig{Fetcher: f})
	tb.sleep = sleeps.sleep
	return tb
}

func TestThrottledBooks_DelaysThenFetches(t *testing.T) {
	f := &scriptedFetcher{book: *askBook("", 100, 1)}
	var sleeps recordedSleeps

	book, ok := newTestBooks(f, &sleeps).Book(context.Background(), "BTC/USDT")

	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", book.Symbol)
	assert.Equal(t, DefaultDepth, f.limit)
	assert.Equal(t, recordedSleeps{DefaultFetchDelay}, sleeps)
}

func TestThrottledBooks_RateLimitCoolsDown(t *testing.T) {
	f := &scriptedFetcher{err: fmt.Errorf("binance: depth: %w", domain.ErrRateLimited)}
	var sleeps recordedSleeps

	_, ok := newTestBooks(f, &sleeps).Book(context.Background(), "BTC/USDT")

	assert.False(t, ok)
	assert.Equal(t, recordedSleeps{DefaultFetchDelay, DefaultCooldown}, sleeps)
}

func TestThrottledBooks_OtherErrorsNoCooldown(t *testing.T) {
	f := &scriptedFetcher{err: errors.New("connection reset")}
	var sleeps recordedSleeps

	_, ok := newTestBooks(f, &sleeps).Book(context.Background(), "BTC/USDT")

	assert.False(t, ok)
	assert.Equal(t, recordedSleeps{DefaultFetchDelay}, sleeps)
}

func TestThrottledBooks_CancelledDuringDelay(t *testing.T) {
	f := &scriptedFetcher{book: *askBook("", 100, 1)}
	tb := NewThrottledBooks(ThrottledBooksConfig{Fetcher: f, Delay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := tb.Book(ctx, "BTC/USDT")

	assert.False(t, ok)
	assert.Zero(t, f.calls)
}

type countingLimiter struct {
	key    string
	limit  int
	window time.Duration
	waits  int
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *countingLimiter) Wait(_ context.Context, key string, limit int, window time.Duration) error {
	l.waits++
	l.key, l.limit, l.window = key, limit, window
	return nil
}

func TestThrottledBooks_SharedLimiter(t *testing.T) {
	f := &scriptedFetcher{book: *bidBook("", 1, 1)}
	lim := &countingLimiter{}
	tb := NewThrottledBooks(ThrottledBooksConfig{
		Fetcher:      f,
		Delay:        -1,
		Shared:       lim,
		SharedLimit:  20,
		SharedWindow: time.Second,
	})

	_, ok := tb.Book(context.Background(), "ETH/BTC")

	require.True(t, ok)
	assert.Equal(t, 1, lim.waits)
	assert.Equal(t, sharedLimiterKey, lim.key)
	assert.Equal(t, 20, lim.limit)
	assert.Equal(t, time.Second, lim.window)
}
