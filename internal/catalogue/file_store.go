package catalogue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// DefaultFileName is used when no catalogue path is configured.
const DefaultFileName = "triangular_paths.pb"

// FileStore keeps the catalogue in a single file on local disk.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFileName
	}
	return &FileStore{path: path}
}

// Name implements domain.CatalogueStore.
func (s *FileStore) Name() string { return "file" }

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Load reads and decodes the catalogue file. A missing file yields
// domain.ErrNotFound.
func (s *FileStore) Load(ctx context.Context) (*domain.Catalogue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("catalogue: file %s: %w", s.path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("catalogue: read %s: %w", s.path, err)
	}
	cat, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("catalogue: file %s: %w", s.path, err)
	}
	return cat, nil
}

// Save writes the catalogue to a temporary file in the same directory and
// renames it over the target, so readers never observe a partial file.
func (s *FileStore) Save(ctx context.Context, cat *domain.Catalogue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("catalogue: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("catalogue: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(Marshal(cat)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("catalogue: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("catalogue: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("catalogue: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("catalogue: rename to %s: %w", s.path, err)
	}
	return nil
}

var _ domain.CatalogueStore = (*FileStore)(nil)
