package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// releaseLua deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock someone else has since taken.
var releaseLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// releaseTimeout bounds the release call; it runs on a fresh context since
// the holder's may be cancelled by then.
const releaseTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX PX and a token
// checked on release. The catalogue build holds one for its whole run.
type LockManager struct {
	c *Client
}

// NewLockManager creates a LockManager.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c}
}

// Acquire takes key for ttl or returns domain.ErrLockHeld. The returned
// release func is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	k := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseLua.Run(rctx, lm.c.rdb, []string{k}, token).Err()
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
