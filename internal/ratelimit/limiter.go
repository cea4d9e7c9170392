// Package ratelimit provides per-IP fixed-window rate limiting backed by
// the shared cache. Time is divided into calendar-minute windows; each
// (client IP, minute) pair owns one self-expiring counter.
package ratelimit

import (
	"context"
	"time"
)

// KeyPrefix is the cache key prefix for rate limit counters. It is
// disjoint from the token cache prefix so the two never collide.
const KeyPrefix = "rate_limit:"

// minuteLayout formats the calendar minute embedded in window keys.
const minuteLayout = "2006-01-02T15:04"

// Limiter decides whether an inbound request is admitted.
type Limiter interface {
	// Admit checks whether a request from the given client IP is allowed
	// under the current window. Admit never returns an error for cache
	// failures; those resolve via the fail-open policy.
	Admit(ctx context.Context, clientIP string) *Decision
}

// Decision is the result of a rate limit admission check.
type Decision struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Limit is the configured per-minute request limit.
	Limit int

	// RetryAfter is the time until the current window resets. Only
	// meaningful when the request is rejected; always within (0, 60s].
	RetryAfter time.Duration

	// FailOpen indicates the request was admitted because the cache was
	// unavailable, not because the counter was under the limit.
	FailOpen bool
}

// windowKey returns the cache key for the given IP and instant,
// e.g. "rate_limit:203.0.113.7:2025-06-01T12:03".
func windowKey(clientIP string, now time.Time) string {
	return KeyPrefix + clientIP + ":" + now.UTC().Format(minuteLayout)
}

// windowEnd returns the start of the minute following now, which is the
// shared reset instant for every request in the current window.
func windowEnd(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute).Add(time.Minute)
}

// retryAfter returns the time until the next minute boundary. This is an
// approximation of the window reset, not the elapsed time since the
// window started. The result is always within [1s, 60s].
func retryAfter(now time.Time) time.Duration {
	secs := 60 - now.UTC().Second()
	return time.Duration(secs) * time.Second
}

// NoopLimiter admits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Admit implements Limiter.
func (NoopLimiter) Admit(ctx context.Context, clientIP string) *Decision {
	return &Decision{Allowed: true}
}
