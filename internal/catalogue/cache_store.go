package catalogue

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// CacheStore keeps the catalogue in a shared cache so other instances can
// start without rebuilding.
type CacheStore struct {
	cache domain.BlobCache
	key   string
	ttl   time.Duration
}

// NewCacheStore creates a CacheStore. A zero ttl keeps the entry forever.
func NewCacheStore(cache domain.BlobCache, key string, ttl time.Duration) *CacheStore {
	return &CacheStore{cache: cache, key: key, ttl: ttl}
}

// Name implements domain.CatalogueStore.
func (s *CacheStore) Name() string { return "redis" }

// Load reads and decodes the cached blob.
func (s *CacheStore) Load(ctx context.Context) (*domain.Catalogue, error) {
	data, err := s.cache.GetBytes(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("catalogue: cache get: %w", err)
	}
	cat, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue: cache %s: %w", s.key, err)
	}
	return cat, nil
}

// Save stores the encoded catalogue.
func (s *CacheStore) Save(ctx context.Context, cat *domain.Catalogue) error {
	if err := s.cache.SetBytes(ctx, s.key, Marshal(cat), s.ttl); err != nil {
		return fmt.Errorf("catalogue: cache set: %w", err)
	}
	return nil
}

var _ domain.CatalogueStore = (*CacheStore)(nil)
