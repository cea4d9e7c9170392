// Package config defines the service configuration, YAML loading with
// environment variable substitution, and hot reload of the rate limit.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	TrustedProxies  []string      `yaml:"trustedProxies"`
}

// CacheConfig selects and configures the shared cache backend.
type CacheConfig struct {
	Backend  string        `yaml:"backend"` // "redis" or "memory"
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwtSecret"`
	TokenValidity time.Duration `yaml:"tokenValidity"`
}

// RateLimitConfig holds per-IP fixed window limiting settings.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled"`
	RequestsPerMin   int64         `yaml:"requestsPerMin"`
	OperationTimeout time.Duration `yaml:"operationTimeout"`
}

// StoreConfig holds user database settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Insecure     bool    `yaml:"insecure"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Backend:  "redis",
			Addr:     "localhost:6379",
			PoolSize: 10,
			Timeout:  500 * time.Millisecond,
		},
		Auth: AuthConfig{
			TokenValidity: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			RequestsPerMin:   100,
			OperationTimeout: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Path: "authgw.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
			Insecure:     true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listenAddr is required")
	}

	switch c.Cache.Backend {
	case "redis":
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	if c.Auth.TokenValidity <= 0 {
		return fmt.Errorf("auth.tokenValidity must be positive")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("rateLimit.requestsPerMin must be positive")
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	if c.Tracing.Enabled {
		if c.Tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlpEndpoint is required when tracing is enabled")
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("tracing.samplingRate must be between 0 and 1")
		}
	}

	return nil
}
