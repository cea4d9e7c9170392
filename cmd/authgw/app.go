package main

import (
	"github.com/vyrodovalexey/authgw/internal/auth/token"
	"github.com/vyrodovalexey/authgw/internal/cache"
	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/ratelimit"
	"github.com/vyrodovalexey/authgw/internal/server"
	"github.com/vyrodovalexey/authgw/internal/store"
)

// application holds all application components.
type application struct {
	server  *server.Server
	cache   cache.Cache
	limiter ratelimit.Limiter
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.Config
}

// initApplication initializes all application components.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	metrics := observability.NewMetrics("authgw")
	metrics.SetBuildInfo(version, gitCommit)

	tracer := initTracer(cfg, logger)
	sharedCache := initCache(cfg, logger, metrics)
	limiter := initLimiter(cfg, sharedCache, logger, metrics)

	users, err := store.NewGormStore(cfg.Store.Path, logger)
	if err != nil {
		logger.Fatal("failed to open user store", observability.Error(err))
	}

	issuer, err := token.NewIssuer(sharedCache, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenValidity,
		token.WithIssuerLogger(logger),
		token.WithIssuerMetrics(metrics),
	)
	if err != nil {
		logger.Fatal("failed to create token issuer", observability.Error(err))
	}

	validator, err := token.NewValidator([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		logger.Fatal("failed to create token validator", observability.Error(err))
	}

	handlers := server.NewHandlers(users, issuer, validator, logger, metrics)

	srv := server.New(&server.Config{
		ListenAddr:     cfg.Server.ListenAddr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TrustedProxies: cfg.Server.TrustedProxies,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		TracingEnabled: cfg.Tracing.Enabled,
		ServiceName:    "authgw",
	}, handlers, limiter, logger, metrics)

	return &application{
		server:  srv,
		cache:   sharedCache,
		limiter: limiter,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
	}
}

// initCache creates the shared cache backend.
func initCache(cfg *config.Config, logger observability.Logger, metrics *observability.Metrics) cache.Cache {
	if cfg.Cache.Backend == "memory" {
		logger.Info("using in-memory cache backend")
		return cache.NewMemoryCache()
	}

	redisCfg := cache.DefaultRedisConfig()
	redisCfg.Address = cfg.Cache.Addr
	redisCfg.Password = cfg.Cache.Password
	redisCfg.DB = cfg.Cache.DB
	if cfg.Cache.PoolSize > 0 {
		redisCfg.PoolSize = cfg.Cache.PoolSize
	}
	redisCfg.Logger = logger
	redisCfg.Metrics = metrics

	c, err := cache.NewRedisCache(redisCfg)
	if err != nil {
		logger.Fatal("failed to connect to redis", observability.Error(err))
	}

	logger.Info("connected to redis",
		observability.String("address", cfg.Cache.Addr),
		observability.Int("db", cfg.Cache.DB),
	)
	return c
}

// initLimiter creates the rate limiter.
func initLimiter(
	cfg *config.Config,
	sharedCache cache.Cache,
	logger observability.Logger,
	metrics *observability.Metrics,
) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		logger.Info("rate limiting disabled")
		return ratelimit.NoopLimiter{}
	}

	opts := []ratelimit.Option{
		ratelimit.WithLogger(logger),
		ratelimit.WithMetrics(metrics),
	}
	if cfg.RateLimit.OperationTimeout > 0 {
		opts = append(opts, ratelimit.WithOpTimeout(cfg.RateLimit.OperationTimeout))
	}

	return ratelimit.NewFixedWindowLimiter(sharedCache, int(cfg.RateLimit.RequestsPerMin), opts...)
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "authgw",
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Insecure:     cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", observability.Error(err))
	}

	return tracer
}
