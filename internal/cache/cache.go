// Package cache provides the shared key-value cache used by the rate
// limiter and the token issuer. It supports Redis for production and a
// deterministic in-memory implementation with identical TTL semantics
// for testing.
package cache

import (
	"context"
	"errors"
	"time"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found in the cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Cache is the capability injected into the rate limiter and the token
// issuer. Both share one keyspace logically; collisions are prevented by
// disjoint key prefixes.
type Cache interface {
	// Incr atomically increments the integer value stored at key and
	// returns the post-increment value. A missing key counts as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// ExpireAt sets the key to expire at the given instant.
	ExpireAt(ctx context.Context, key string, at time.Time) error

	// SetWithTTL stores value under key with the given time to live.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Get retrieves the value stored at key.
	// Returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) (string, error)

	// TTL returns the remaining time to live of key.
	// Returns ErrCacheMiss if the key is not found.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Close closes the cache and releases resources.
	Close() error
}

// Backend identifies a cache backend implementation.
type Backend string

const (
	// BackendRedis selects the Redis-backed cache.
	BackendRedis Backend = "redis"

	// BackendMemory selects the in-memory cache.
	BackendMemory Backend = "memory"
)
