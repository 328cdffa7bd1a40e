package triangle

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	// DefaultBatchSize is the number of candidates handed to one round of
	// workers.
	DefaultBatchSize = 100_000
	// DefaultMaxWorkers caps build parallelism regardless of core count.
	DefaultMaxWorkers = 6

	// ctxCheckEvery is how many candidates a shard validates between
	// cancellation checks.
	ctxCheckEvery = 4096
)

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Stablecoins domain.StableSet
	BatchSize   int
	MaxWorkers  int
	Logger      *slog.Logger
}

// BuildStats reports what a build did.
type BuildStats struct {
	Generated int
	Validated int
	Batches   int
	Workers   int
	Duration  time.Duration
}

// Builder enumerates candidate triangles and validates them in parallel.
type Builder struct {
	validator Validator
	stables   domain.StableSet
	batchSize int
	workers   int
	logger    *slog.Logger
}

// NewBuilder creates a Builder. Zero values in cfg fall back to the defaults.
func NewBuilder(cfg BuilderConfig) *Builder {
	stables := cfg.Stablecoins
	if len(stables) == 0 {
		stables = domain.NewStableSet(domain.DefaultStablecoins...)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	workers := runtime.NumCPU()
	if workers > maxWorkers {
		workers = maxWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		validator: NewValidator(stables),
		stables:   stables,
		batchSize: batch,
		workers:   workers,
		logger:    logger.With(slog.String("component", "catalogue_builder")),
	}
}

// Build validates every (stable, X, Y) candidate drawn from currencies
// against active and returns the resulting catalogue. Stablecoins are taken
// from the builder's set and must appear in currencies to be used.
func (b *Builder) Build(ctx context.Context, active domain.PairSet, currencies []string) (*domain.Catalogue, BuildStats, error) {
	start := time.Now()
	space := newCandidateSpace(b.stables, currencies)
	total := space.size()

	stats := BuildStats{Generated: total, Workers: b.workers}
	if len(space.stables) == 0 {
		b.logger.WarnContext(ctx, "no configured stablecoin is listed on the exchange",
			slog.Any("stablecoins", b.stables.Sorted()),
		)
	}
	b.logger.InfoContext(ctx, "generated candidate triangles",
		slog.Int("candidates", total),
		slog.Int("stablecoins", len(space.stables)),
		slog.Int("currencies", len(space.others)),
	)

	var paths []domain.Cycle
	for lo := 0; lo < total; lo += b.batchSize {
		hi := lo + b.batchSize
		if hi > total {
			hi = total
		}
		found, err := b.runBatch(ctx, space, lo, hi, active)
		if err != nil {
			return nil, stats, err
		}
		paths = append(paths, found...)
		stats.Batches++

		b.logger.InfoContext(ctx, "processed candidate batch",
			slog.Int("processed", hi),
			slog.Int("total", total),
			slog.Int("valid_so_far", len(paths)),
		)
	}

	stats.Validated = len(paths)
	stats.Duration = time.Since(start)
	return domain.NewCatalogue(paths, time.Now()), stats, nil
}

// runBatch splits [lo, hi) into one shard per worker and validates the shards
// concurrently. Shard outputs are concatenated in shard order.
func (b *Builder) runBatch(ctx context.Context, space candidateSpace, lo, hi int, active domain.PairSet) ([]domain.Cycle, error) {
	n := hi - lo
	chunk := n/b.workers + 1

	var shards [][2]int
	for s := lo; s < hi; s += chunk {
		e := s + chunk
		if e > hi {
			e = hi
		}
		shards = append(shards, [2]int{s, e})
	}

	results := make([][]domain.Cycle, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range shards {
		g.Go(func() error {
			found, err := b.validateRange(gctx, space, sh[0], sh[1], active)
			if err != nil {
				return err
			}
			results[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("triangle: build batch [%d,%d): %w", lo, hi, err)
	}

	var out []domain.Cycle
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (b *Builder) validateRange(ctx context.Context, space candidateSpace, lo, hi int, active domain.PairSet) ([]domain.Cycle, error) {
	var found []domain.Cycle
	for k := lo; k < hi; k++ {
		if (k-lo)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if cycle, ok := b.validator.Validate(space.at(k), active); ok {
			found = append(found, cycle)
		}
	}
	return found, nil
}

// candidateSpace indexes every (stable, X, Y) permutation without
// materialising the list. Index k maps to stable k/(n(n-1)) and the
// (k mod n(n-1))-th ordered pair of distinct non-stable currencies.
type candidateSpace struct {
	stables []string
	others  []string
}

func newCandidateSpace(stables domain.StableSet, currencies []string) candidateSpace {
	var sp candidateSpace
	seen := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		if _, dup := seen[c]; dup || c == "" {
			continue
		}
		seen[c] = struct{}{}
		if stables.Has(c) {
			sp.stables = append(sp.stables, c)
		} else {
			sp.others = append(sp.others, c)
		}
	}
	sort.Strings(sp.stables)
	sort.Strings(sp.others)
	return sp
}

func (sp candidateSpace) size() int {
	n := len(sp.others)
	if n < 2 {
		return 0
	}
	return len(sp.stables) * n * (n - 1)
}

func (sp candidateSpace) at(k int) domain.Triangle {
	n := len(sp.others)
	per := n * (n - 1)
	r := k % per
	i := r / (n - 1)
	j := r % (n - 1)
	if j >= i {
		j++
	}
	return domain.Triangle{Stable: sp.stables[k/per], X: sp.others[i], Y: sp.others[j]}
}
