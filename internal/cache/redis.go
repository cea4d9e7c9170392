package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// RedisConfig holds configuration for the Redis cache.
type RedisConfig struct {
	Address  string
	Password string
	DB       int

	// Connection pool settings.
	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	// Timeouts.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Logger for the Redis cache.
	Logger observability.Logger

	// Metrics receives per-operation counters and durations. Optional.
	Metrics *observability.Metrics
}

// DefaultRedisConfig returns a RedisConfig with default values.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:      "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisCache implements Cache using Redis.
type RedisCache struct {
	client  *redis.Client
	logger  observability.Logger
	metrics *observability.Metrics
	closed  bool
	mu      sync.Mutex
}

// NewRedisCache creates a new Redis cache and verifies connectivity.
func NewRedisCache(config *RedisConfig) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	logger := config.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.Address, err)
	}

	logger.Info("Redis connection established",
		observability.String("address", config.Address),
		observability.Int("db", config.DB),
	)

	return &RedisCache{
		client:  client,
		logger:  logger,
		metrics: config.Metrics,
	}, nil
}

// NewRedisCacheFromClient wraps an existing Redis client. Used by tests.
func NewRedisCacheFromClient(client *redis.Client, logger observability.Logger, metrics *observability.Metrics) *RedisCache {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisCache{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// Incr implements Cache. INCR is atomic on the Redis side, which makes it
// safe for concurrent window counting without a read-then-write race.
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis incr: %w", err)
	}

	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		c.record("incr", statusError, start)
		return 0, fmt.Errorf("redis incr error: %w", err)
	}

	c.record("incr", statusSuccess, start)
	return val, nil
}

// ExpireAt implements Cache.
func (c *RedisCache) ExpireAt(ctx context.Context, key string, at time.Time) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis expireat: %w", err)
	}

	if err := c.client.ExpireAt(ctx, key, at).Err(); err != nil {
		c.record("expire_at", statusError, start)
		return fmt.Errorf("redis expireat error: %w", err)
	}

	c.record("expire_at", statusSuccess, start)
	return nil
}

// SetWithTTL implements Cache.
func (c *RedisCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error before redis set: %w", err)
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.record("set", statusError, start)
		return fmt.Errorf("redis set error: %w", err)
	}

	c.record("set", statusSuccess, start)
	return nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error before redis get: %w", err)
	}

	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.record("get", statusNotFound, start)
		return "", ErrCacheMiss
	}
	if err != nil {
		c.record("get", statusError, start)
		return "", fmt.Errorf("redis get error: %w", err)
	}

	c.record("get", statusSuccess, start)
	return val, nil
}

// TTL implements Cache. A key without expiry reports zero.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error before redis ttl: %w", err)
	}

	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		c.record("ttl", statusError, start)
		return 0, fmt.Errorf("redis ttl error: %w", err)
	}

	// go-redis reports a missing key as -2 and a key without expiry as -1.
	if d == -2 {
		c.record("ttl", statusNotFound, start)
		return 0, ErrCacheMiss
	}
	if d < 0 {
		d = 0
	}

	c.record("ttl", statusSuccess, start)
	return d, nil
}

// Close implements Cache. Close is idempotent.
func (c *RedisCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *RedisCache) Client() *redis.Client {
	return c.client
}
