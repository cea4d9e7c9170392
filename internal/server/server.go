package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/middleware"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/ratelimit"
)

// API route paths.
const (
	PathLogin     = "/v1/auth/login"
	PathMe        = "/v1/auth/me"
	PathRegister  = "/v1/auth/register"
	PathAPIStatus = "/v1/utils/api-status"
)

// ginModeOnce ensures gin.SetMode is only called once to avoid race conditions.
var ginModeOnce sync.Once

// Config holds configuration for the HTTP server.
type Config struct {
	ListenAddr     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string

	MetricsEnabled bool
	MetricsPath    string

	TracingEnabled bool
	ServiceName    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MetricsEnabled: true,
		MetricsPath:    "/metrics",
		ServiceName:    "authgw",
	}
}

// Server is the HTTP front of the gateway: the middleware chain plus
// the API routes.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	config     *Config
	logger     observability.Logger
	mu         sync.RWMutex
	running    bool
}

// New creates an HTTP server with the full middleware chain wired in.
// The rate limiter guards every route, status probe and metrics endpoint
// included; only the audit log and tracing skip those two paths.
func New(
	config *Config,
	handlers *Handlers,
	limiter ratelimit.Limiter,
	logger observability.Logger,
	metrics *observability.Metrics,
) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	ginModeOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)
	})

	engine := gin.New()

	// Noise paths kept out of the audit log and traces. They still go
	// through rate limit admission like everything else.
	skipPaths := []string{PathAPIStatus}
	if config.MetricsEnabled {
		skipPaths = append(skipPaths, config.MetricsPath)
	}

	engine.Use(middleware.Recovery(logger))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.ClientIP(middleware.NewClientIPExtractor(config.TrustedProxies)))
	if config.TracingEnabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: config.ServiceName,
			SkipPaths:   skipPaths,
		}))
	}
	if metrics != nil {
		engine.Use(middleware.Metrics(metrics))
	}
	engine.Use(middleware.AuditWithConfig(middleware.AuditConfig{
		Logger:    logger,
		SkipPaths: skipPaths,
	}))
	engine.Use(middleware.RateLimitWithConfig(middleware.RateLimitConfig{
		Limiter: limiter,
		Logger:  logger,
	}))

	registerRoutes(engine, handlers)

	if config.MetricsEnabled && metrics != nil {
		engine.GET(config.MetricsPath, gin.WrapH(metrics.Handler()))
	}

	return &Server{
		engine: engine,
		config: config,
		logger: logger,
	}
}

// registerRoutes attaches the API endpoints.
func registerRoutes(engine *gin.Engine, handlers *Handlers) {
	engine.GET(PathLogin, handlers.Login)
	engine.GET(PathMe, handlers.Me)
	engine.POST(PathRegister, handlers.Register)
	engine.GET(PathAPIStatus, handlers.APIStatus)
}

// Engine returns the underlying gin engine. Exposed for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting HTTP server",
		observability.String("address", s.config.ListenAddr),
		observability.Duration("readTimeout", s.config.ReadTimeout),
		observability.Duration("writeTimeout", s.config.WriteTimeout),
	)

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("HTTP server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
