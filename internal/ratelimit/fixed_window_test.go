package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/cache"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	clock := func() time.Time { return now }

	c := cache.NewMemoryCache(cache.WithClock(clock))
	t.Cleanup(func() { _ = c.Close() })

	l := NewFixedWindowLimiter(c, limit, WithClock(clock))
	return l, &now
}

func TestAdmit_AllowsLimitPlusOne(t *testing.T) {
	l, _ := newTestLimiter(t, 10)
	ctx := context.Background()

	// The request that creates the window still counts, so 11 requests
	// pass before rejection begins at a limit of 10.
	for i := 0; i < 11; i++ {
		d := l.Admit(ctx, "203.0.113.7")
		assert.True(t, d.Allowed, "request %d should be admitted", i+1)
		assert.False(t, d.FailOpen)
	}

	d := l.Admit(ctx, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.Equal(t, 10, d.Limit)
}

func TestAdmit_RetryAfterWithinBounds(t *testing.T) {
	l, now := newTestLimiter(t, 0)
	ctx := context.Background()

	d := l.Admit(ctx, "203.0.113.7")
	require.True(t, d.Allowed, "limit 0 still admits one request")

	d = l.Admit(ctx, "203.0.113.7")
	require.False(t, d.Allowed)

	// At second 17 the window resets in 43 seconds.
	assert.Equal(t, 43*time.Second, d.RetryAfter)

	// At second 0 the full minute remains.
	*now = time.Date(2025, 6, 1, 12, 3, 0, 0, time.UTC)
	l.Admit(ctx, "198.51.100.1")
	d = l.Admit(ctx, "198.51.100.1")
	require.False(t, d.Allowed)
	assert.Equal(t, 60*time.Second, d.RetryAfter)

	// At second 59 only one second remains.
	*now = time.Date(2025, 6, 1, 12, 3, 59, 0, time.UTC)
	l.Admit(ctx, "198.51.100.2")
	d = l.Admit(ctx, "198.51.100.2")
	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestAdmit_DistinctIPsCountedIndependently(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	l.Admit(ctx, "203.0.113.7")
	l.Admit(ctx, "203.0.113.7")
	d := l.Admit(ctx, "203.0.113.7")
	require.False(t, d.Allowed)

	d = l.Admit(ctx, "203.0.113.8")
	assert.True(t, d.Allowed)
}

func TestAdmit_NewWindowResetsCount(t *testing.T) {
	l, now := newTestLimiter(t, 1)
	ctx := context.Background()

	l.Admit(ctx, "203.0.113.7")
	l.Admit(ctx, "203.0.113.7")
	require.False(t, l.Admit(ctx, "203.0.113.7").Allowed)

	// Crossing the minute boundary starts a fresh window.
	*now = now.Add(time.Minute)
	assert.True(t, l.Admit(ctx, "203.0.113.7").Allowed)
}

func TestAdmit_CounterExpiresAtWindowEnd(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	c := cache.NewMemoryCache(cache.WithClock(clock))
	t.Cleanup(func() { _ = c.Close() })
	l := NewFixedWindowLimiter(c, 5, WithClock(clock))

	l.Admit(context.Background(), "203.0.113.7")

	key := windowKey("203.0.113.7", now)
	ttl, err := c.TTL(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 43*time.Second, ttl)

	// After the boundary the counter is gone.
	mu.Lock()
	now = now.Add(44 * time.Second)
	mu.Unlock()
	_, err = c.Get(context.Background(), key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

// failingCache returns an error from every operation.
type failingCache struct{}

func (failingCache) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingCache) ExpireAt(context.Context, string, time.Time) error {
	return errors.New("connection refused")
}
func (failingCache) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}
func (failingCache) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}
func (failingCache) TTL(context.Context, string) (time.Duration, error) {
	return 0, errors.New("connection refused")
}
func (failingCache) Close() error { return nil }

// expiryFailingCache counts normally but cannot set expiries.
type expiryFailingCache struct {
	cache.Cache
	expireAtCalls atomic.Int64
}

func (c *expiryFailingCache) ExpireAt(context.Context, string, time.Time) error {
	c.expireAtCalls.Add(1)
	return errors.New("i/o timeout")
}

func TestAdmit_ExpiryFailureDoesNotAffectAdmission(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	clock := func() time.Time { return now }

	mc := cache.NewMemoryCache(cache.WithClock(clock))
	t.Cleanup(func() { _ = mc.Close() })
	fc := &expiryFailingCache{Cache: mc}

	l := NewFixedWindowLimiter(fc, 1, WithClock(clock))
	ctx := context.Background()

	// The committed increment drives the decision; a lost expiry is a
	// leaked key, not a fail-open.
	d := l.Admit(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.False(t, d.FailOpen)

	d = l.Admit(ctx, "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.False(t, d.FailOpen)

	d = l.Admit(ctx, "203.0.113.7")
	assert.False(t, d.Allowed)
	assert.False(t, d.FailOpen)

	// One retry after the initial attempt, on the first increment only.
	assert.Equal(t, int64(2), fc.expireAtCalls.Load())
}

func TestAdmit_FailsOpenOnCacheError(t *testing.T) {
	l := NewFixedWindowLimiter(failingCache{}, 10)

	for i := 0; i < 20; i++ {
		d := l.Admit(context.Background(), "203.0.113.7")
		assert.True(t, d.Allowed)
		assert.True(t, d.FailOpen)
	}
}

func TestAdmit_FailsOpenThroughRedisOutage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	c := cache.NewRedisCacheFromClient(client, nil, nil)
	t.Cleanup(func() { _ = c.Close() })

	l := NewFixedWindowLimiter(c, 10, WithOpTimeout(100*time.Millisecond))

	require.True(t, l.Admit(context.Background(), "203.0.113.7").Allowed)

	mr.Close()

	d := l.Admit(context.Background(), "203.0.113.7")
	assert.True(t, d.Allowed)
	assert.True(t, d.FailOpen)
}

func TestAdmit_ConcurrentRequestsAdmitExactlyLimitPlusOne(t *testing.T) {
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	// Pin the clock so the test cannot straddle a minute boundary.
	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	l := NewFixedWindowLimiter(c, 10, WithClock(func() time.Time { return now }))

	const goroutines = 50
	var admitted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			d := l.Admit(context.Background(), "203.0.113.7")
			assert.False(t, d.FailOpen)
			if d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(11), admitted.Load())
}

func TestSetLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ctx := context.Background()

	l.Admit(ctx, "203.0.113.7")
	l.Admit(ctx, "203.0.113.7")
	require.False(t, l.Admit(ctx, "203.0.113.7").Allowed)

	l.SetLimit(100)
	assert.Equal(t, 100, l.Limit())
	assert.True(t, l.Admit(ctx, "203.0.113.7").Allowed)
}

func TestNoopLimiter(t *testing.T) {
	l := NoopLimiter{}

	for i := 0; i < 1000; i++ {
		assert.True(t, l.Admit(context.Background(), "203.0.113.7").Allowed)
	}
}

func TestWindowKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 3, 17, 0, time.UTC)
	assert.Equal(t, "rate_limit:203.0.113.7:2025-06-01T12:03", windowKey("203.0.113.7", now))

	// Keys embed UTC regardless of the input zone.
	loc := time.FixedZone("UTC+2", 2*60*60)
	assert.Equal(t, windowKey("203.0.113.7", now), windowKey("203.0.113.7", now.In(loc)))
}

func TestWindowEnd(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 3, 17, 500000000, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 4, 0, 0, time.UTC), windowEnd(now))
}
