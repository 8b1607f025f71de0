package keylock

import (
	"sync"
	"time"
)

// Registry hands out per-key locks with a TTL. A lock held longer than
// its TTL is considered stale and can be re-acquired, which keeps a
// crashed holder from blocking the key forever.
type Registry struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewRegistry creates a lock registry with the given TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:   ttl,
		held:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

// TryAcquire attempts to take the lock for key. Returns false when the
// key is already held and the hold has not yet expired.
func (r *Registry) TryAcquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	if acquiredAt, ok := r.held[key]; ok {
		if now.Sub(acquiredAt) < r.ttl {
			return false
		}
	}
	r.held[key] = now
	return true
}

// Release frees the lock for key.
func (r *Registry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, key)
}

// Held reports whether key is currently locked and not expired.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	acquiredAt, ok := r.held[key]
	if !ok {
		return false
	}
	return r.nowFn().Sub(acquiredAt) < r.ttl
}

// Sweep drops expired entries. Callers run it periodically to keep the
// map from growing with abandoned keys.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	removed := 0
	for key, acquiredAt := range r.held {
		if now.Sub(acquiredAt) >= r.ttl {
			delete(r.held, key)
			removed++
		}
	}
	return removed
}
