package catalogue

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// BlobStore mirrors the catalogue to object storage under a fixed key.
type BlobStore struct {
	objects domain.ObjectStore
	key     string
}

// NewBlobStore creates a BlobStore for key.
func NewBlobStore(objects domain.ObjectStore, key string) *BlobStore {
	return &BlobStore{objects: objects, key: key}
}

// Name implements domain.CatalogueStore.
func (s *BlobStore) Name() string { return "s3" }

// Load fetches and decodes the object. A missing key surfaces as
// domain.ErrNotFound.
func (s *BlobStore) Load(ctx context.Context) (*domain.Catalogue, error) {
	data, err := s.objects.GetObject(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("catalogue: blob get: %w", err)
	}
	cat, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue: blob %s: %w", s.key, err)
	}
	return cat, nil
}

// Save uploads the encoded catalogue.
func (s *BlobStore) Save(ctx context.Context, cat *domain.Catalogue) error {
	if err := s.objects.PutObject(ctx, s.key, Marshal(cat), ContentType); err != nil {
		return fmt.Errorf("catalogue: blob put: %w", err)
	}
	return nil
}

var _ domain.CatalogueStore = (*BlobStore)(nil)
