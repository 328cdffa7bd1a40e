package executor

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicate is returned when a cycle is submitted again inside the dedup
// window.
var ErrDuplicate = errors.New("duplicate execution")

// Dedup remembers recently executed keys for a fixed TTL. It is safe for
// concurrent use.
type Dedup struct {
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
}

// NewDedup creates a Dedup with the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsDuplicate reports whether key was recorded within the TTL. Otherwise it
// records key and returns false.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Cleanup drops expired entries.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}
}
