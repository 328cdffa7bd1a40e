package domain

import "context"

// ObjectStore reads and writes whole objects by key. GetObject returns
// ErrNotFound when the key does not exist.
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
}
