package executor

import (
	"sync"
	"time"
)

// Dedup tracks recently attempted baskets so the same basket is not executed
// more than once within a time-to-live window. Safe for concurrent use.
type Dedup struct {
	seen map[string]time.Time // basket key -> last attempt time
	ttl  time.Duration
	mu   sync.Mutex
}

// NewDedup creates a Dedup that considers a basket a duplicate if it was
// attempted within the given ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate reports whether key was seen within the TTL window. A key that
// has not been seen (or whose window expired) is recorded and false returned.
func (d *Dedup) IsDuplicate(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return true
	}
	d.seen[key] = now
	return false
}

// Cleanup drops expired entries. Call periodically to bound memory growth.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
