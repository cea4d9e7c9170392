package main

import (
	"os"
	"strconv"
	"time"

	"github.com/vyrodovalexey/authgw/internal/config"
)

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// applyEnvOverrides overlays environment variables onto the configuration.
// Used when no config file is present so the service can run fully from
// the environment.
func applyEnvOverrides(cfg *config.Config) {
	cfg.Server.ListenAddr = getEnvOrDefault("AUTHGW_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Cache.Backend = getEnvOrDefault("AUTHGW_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Addr = getEnvOrDefault("AUTHGW_REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = getEnvOrDefault("AUTHGW_REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Auth.JWTSecret = getEnvOrDefault("AUTHGW_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Store.Path = getEnvOrDefault("AUTHGW_DB_PATH", cfg.Store.Path)

	if v := os.Getenv("AUTHGW_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("AUTHGW_RATE_LIMIT_PER_MIN"); v != "" {
		if limit, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.RateLimit.RequestsPerMin = limit
		}
	}
	if v := os.Getenv("AUTHGW_TOKEN_VALIDITY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenValidity = d
		}
	}
}
