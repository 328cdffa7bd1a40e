package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// BlobCache implements domain.BlobCache with plain Redis strings. It holds
// the encoded catalogue so fresh instances skip the build.
type BlobCache struct {
	c *Client
}

// NewBlobCache creates a BlobCache.
func NewBlobCache(c *Client) *BlobCache {
	return &BlobCache{c: c}
}

// SetBytes stores value under key. A zero ttl never expires.
func (bc *BlobCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := bc.c.rdb.Set(ctx, bc.c.key("cache", key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// GetBytes returns the value stored under key, or domain.ErrNotFound.
func (bc *BlobCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	b, err := bc.c.rdb.Get(ctx, bc.c.key("cache", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return b, nil
}

var _ domain.BlobCache = (*BlobCache)(nil)
