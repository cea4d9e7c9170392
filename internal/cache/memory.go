package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// maxCASRetries is the maximum number of CAS retry attempts to prevent
// infinite spinning under high contention.
const maxCASRetries = 100

// entry represents a stored value with expiration. A zero expiration
// means the entry never expires.
type entry struct {
	value      string
	expiration time.Time
}

// MemoryCache implements Cache using in-memory storage with the same
// TTL and expiry semantics as the Redis implementation. Used for tests
// and single-process deployments without Redis.
type MemoryCache struct {
	data    sync.Map
	now     func() time.Time
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// MemoryOption is a functional option for the memory cache.
type MemoryOption func(*MemoryCache)

// WithClock overrides the clock used for expiry checks. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithCleanupInterval overrides the background cleanup interval.
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(c *MemoryCache) {
		c.cleanup.Reset(interval)
	}
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		now:     time.Now,
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.startCleanup()

	return c
}

// load returns the live entry for key, deleting it if expired.
func (c *MemoryCache) load(key string) (*entry, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	e := value.(*entry)
	if !e.expiration.IsZero() && c.now().After(e.expiration) {
		c.data.Delete(key)
		return nil, false
	}

	return e, true
}

// Incr implements Cache using a compare-and-swap loop so that two
// concurrent increments never observe the same pre-increment value.
func (c *MemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		e, ok := c.load(key)
		if !ok {
			newEntry := &entry{value: "1"}
			if _, loaded := c.data.LoadOrStore(key, newEntry); loaded {
				// Another goroutine created it, retry.
				continue
			}
			return 1, nil
		}

		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %q is not an integer: %w", key, err)
		}

		newEntry := &entry{
			value:      strconv.FormatInt(n+1, 10),
			expiration: e.expiration,
		}

		if c.data.CompareAndSwap(key, e, newEntry) {
			return n + 1, nil
		}
		// CAS failed, retry.
	}

	return 0, fmt.Errorf("incr failed: max retries (%d) exceeded", maxCASRetries)
}

// ExpireAt implements Cache.
func (c *MemoryCache) ExpireAt(ctx context.Context, key string, at time.Time) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		e, ok := c.load(key)
		if !ok {
			// Matches Redis: expiring a missing key is a no-op.
			return nil
		}

		newEntry := &entry{
			value:      e.value,
			expiration: at,
		}

		if c.data.CompareAndSwap(key, e, newEntry) {
			return nil
		}
	}

	return fmt.Errorf("expireat failed: max retries (%d) exceeded", maxCASRetries)
}

// SetWithTTL implements Cache.
func (c *MemoryCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}

	c.data.Store(key, &entry{
		value:      value,
		expiration: exp,
	})

	return nil
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	e, ok := c.load(key)
	if !ok {
		return "", ErrCacheMiss
	}

	return e.value, nil
}

// TTL implements Cache. A key without expiry reports zero.
func (c *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	e, ok := c.load(key)
	if !ok {
		return 0, ErrCacheMiss
	}

	if e.expiration.IsZero() {
		return 0, nil
	}

	d := e.expiration.Sub(c.now())
	if d < 0 {
		d = 0
	}
	return d, nil
}

// Close implements Cache. Close is idempotent.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cleanup.Stop()
	close(c.done)

	return nil
}

// Size returns the number of live entries. Used by tests.
func (c *MemoryCache) Size() int {
	count := 0
	c.data.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if e.expiration.IsZero() || c.now().Before(e.expiration) {
			count++
		}
		return true
	})
	return count
}

// startCleanup periodically removes expired entries.
func (c *MemoryCache) startCleanup() {
	for {
		select {
		case <-c.cleanup.C:
			c.cleanupExpired()
		case <-c.done:
			return
		}
	}
}

// cleanupExpired removes all expired entries.
func (c *MemoryCache) cleanupExpired() {
	now := c.now()

	c.data.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if !e.expiration.IsZero() && now.After(e.expiration) {
			c.data.Delete(key)
		}
		return true
	})
}
