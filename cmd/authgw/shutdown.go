package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/authgw/internal/config"
	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/ratelimit"
)

// runApplication runs the server and handles shutdown.
func runApplication(app *application, configPath string, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(context.Background())
	}()

	reloader := startRateLimitReload(app, configPath, logger)

	waitForShutdown(app, reloader, errCh, logger)
}

// startRateLimitReload watches the configuration file and applies rate
// limit changes live. Other settings need a restart.
func startRateLimitReload(
	app *application,
	configPath string,
	logger observability.Logger,
) *config.Reloader {
	fw, ok := app.limiter.(*ratelimit.FixedWindowLimiter)
	if !ok {
		return nil
	}

	reloader, err := config.NewReloader(configPath, 0, func(newCfg *config.Config) {
		newLimit := int(newCfg.RateLimit.RequestsPerMin)
		if newLimit == fw.Limit() {
			return
		}
		logger.Info("applying new rate limit",
			observability.Int("limit", newLimit),
		)
		fw.SetLimit(newLimit)
	}, logger)

	if err != nil {
		logger.Warn("rate limit hot reload unavailable", observability.Error(err))
		return nil
	}

	return reloader
}

// waitForShutdown waits for a shutdown signal or a server error, then
// performs graceful shutdown.
func waitForShutdown(
	app *application,
	reloader *config.Reloader,
	errCh <-chan error,
	logger observability.Logger,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if reloader != nil {
		_ = reloader.Close()
	}

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := app.cache.Close(); err != nil {
		logger.Error("failed to close cache", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	logger.Info("authgw stopped")
}
