package catalogue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// MultiStore fans a catalogue out to a primary store and any number of
// mirrors. Loads try each store in order; saves must succeed on the primary
// and are best effort on mirrors.
type MultiStore struct {
	primary domain.CatalogueStore
	mirrors []domain.CatalogueStore
	logger  *slog.Logger
}

// NewMultiStore creates a MultiStore. Load order is mirrors first, primary
// last, so a shared cache or bucket is preferred over a possibly stale local
// file.
func NewMultiStore(primary domain.CatalogueStore, logger *slog.Logger, mirrors ...domain.CatalogueStore) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStore{
		primary: primary,
		mirrors: mirrors,
		logger:  logger.With(slog.String("component", "catalogue_store")),
	}
}

// Name implements domain.CatalogueStore.
func (m *MultiStore) Name() string { return "multi" }

func (m *MultiStore) loadOrder() []domain.CatalogueStore {
	out := make([]domain.CatalogueStore, 0, len(m.mirrors)+1)
	out = append(out, m.mirrors...)
	return append(out, m.primary)
}

// Load returns the first catalogue any store yields. If every store fails
// and all failures are domain.ErrNotFound, the result is domain.ErrNotFound.
func (m *MultiStore) Load(ctx context.Context) (*domain.Catalogue, error) {
	var errs []error
	for _, s := range m.loadOrder() {
		cat, err := s.Load(ctx)
		if err == nil {
			m.logger.InfoContext(ctx, "catalogue loaded",
				slog.String("store", s.Name()),
				slog.Int("cycles", cat.Len()),
			)
			return cat, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.WarnContext(ctx, "catalogue load failed",
				slog.String("store", s.Name()),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, err)
	}

	for _, err := range errs {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("catalogue: load: %w", errors.Join(errs...))
		}
	}
	return nil, fmt.Errorf("catalogue: load: %w", domain.ErrNotFound)
}

// Save writes the primary, then each mirror. Mirror failures are logged
// and do not fail the save.
func (m *MultiStore) Save(ctx context.Context, cat *domain.Catalogue) error {
	if err := m.primary.Save(ctx, cat); err != nil {
		return fmt.Errorf("catalogue: save %s: %w", m.primary.Name(), err)
	}
	for _, s := range m.mirrors {
		if err := s.Save(ctx, cat); err != nil {
			m.logger.WarnContext(ctx, "catalogue mirror save failed",
				slog.String("store", s.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

var _ domain.CatalogueStore = (*MultiStore)(nil)
