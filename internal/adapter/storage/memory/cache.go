package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// kv is a TTL map shared by Guard and IdempotencyCache.
type kv struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

func newKV() *kv {
	return &kv{items: make(map[string]entry), now: time.Now}
}

func (k *kv) live(key string, now time.Time) (entry, bool) {
	e, ok := k.items[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		delete(k.items, key)
		return entry{}, false
	}
	return e, true
}

func (k *kv) expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Guard implements ports.SubmissionGuard for single-process deployments.
type Guard struct {
	kv *kv
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{kv: newKV()}
}

// Claim takes key for ttl unless another live claim holds it.
func (g *Guard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.kv.mu.Lock()
	defer g.kv.mu.Unlock()

	now := g.kv.now()
	if _, held := g.kv.live(key, now); held {
		return false, nil
	}
	g.kv.items[key] = entry{expiresAt: g.kv.expiry(now, ttl)}
	return true, nil
}

// Release drops a claim. Releasing a free key is a no-op.
func (g *Guard) Release(_ context.Context, key string) error {
	g.kv.mu.Lock()
	defer g.kv.mu.Unlock()
	delete(g.kv.items, key)
	return nil
}

// IdempotencyCache implements ports.IdempotencyCache in process memory.
type IdempotencyCache struct {
	kv *kv
}

// NewIdempotencyCache creates an empty IdempotencyCache.
func NewIdempotencyCache() *IdempotencyCache {
	return &IdempotencyCache{kv: newKV()}
}

// Get returns nil, nil for a missing or expired key.
func (c *IdempotencyCache) Get(_ context.Context, key string) ([]byte, error) {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	e, ok := c.kv.live(key, c.kv.now())
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), e.value...), nil
}

// Set keeps the first live value stored for key.
func (c *IdempotencyCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.kv.mu.Lock()
	defer c.kv.mu.Unlock()
	now := c.kv.now()
	if _, ok := c.kv.live(key, now); ok {
		return nil
	}
	c.kv.items[key] = entry{value: append([]byte(nil), value...), expiresAt: c.kv.expiry(now, ttl)}
	return nil
}
