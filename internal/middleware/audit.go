package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/observability"
)

// AuditConfig holds configuration for the audit middleware.
type AuditConfig struct {
	Logger observability.Logger

	// SkipPaths lists paths excluded from audit logging and timing,
	// typically the status probe.
	SkipPaths []string
}

// Audit returns a middleware that logs completed requests and reports
// the handler wall-clock time in the X-Process-Time header.
func Audit(logger observability.Logger) gin.HandlerFunc {
	return AuditWithConfig(AuditConfig{Logger: logger})
}

// AuditWithConfig returns an audit middleware with custom configuration.
func AuditWithConfig(config AuditConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipPaths[path] {
			c.Next()
			return
		}

		start := time.Now()

		// Header must be set before the response body is written.
		c.Writer.Header().Set(HeaderXProcessTime, "0")
		writer := &processTimeWriter{ResponseWriter: c.Writer, start: start}
		c.Writer = writer

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		fields := buildAuditFields(c, path, latency, status)
		logRequestByStatus(config.Logger, status, fields)
	}
}

// processTimeWriter stamps the elapsed handler time just before the
// first byte of the response is written.
type processTimeWriter struct {
	gin.ResponseWriter
	start   time.Time
	stamped bool
}

func (w *processTimeWriter) stamp() {
	if w.stamped {
		return
	}
	w.stamped = true
	elapsed := time.Since(w.start).Seconds()
	w.Header().Set(HeaderXProcessTime, strconv.FormatFloat(elapsed, 'f', 6, 64))
}

func (w *processTimeWriter) WriteHeader(code int) {
	w.stamp()
	w.ResponseWriter.WriteHeader(code)
}

func (w *processTimeWriter) Write(b []byte) (int, error) {
	w.stamp()
	return w.ResponseWriter.Write(b)
}

func (w *processTimeWriter) WriteString(s string) (int, error) {
	w.stamp()
	return w.ResponseWriter.WriteString(s)
}

// buildAuditFields builds the log fields from request and response data.
func buildAuditFields(c *gin.Context, path string, latency time.Duration, status int) []observability.Field {
	fields := []observability.Field{
		observability.String("requestID", GetRequestID(c)),
		observability.String("method", c.Request.Method),
		observability.String("path", path),
		observability.String("query", c.Request.URL.RawQuery),
		observability.Int("status", status),
		observability.Duration("latency", latency),
		observability.String("clientIP", GetClientIP(c)),
		observability.String("userAgent", c.Request.UserAgent()),
		observability.Int("bodySize", c.Writer.Size()),
	}

	if len(c.Errors) > 0 {
		fields = append(fields, observability.String("errors", c.Errors.String()))
	}

	return fields
}

// logRequestByStatus logs the request at a level matching the status code.
func logRequestByStatus(logger observability.Logger, status int, fields []observability.Field) {
	switch {
	case status >= 500:
		logger.Error("request completed", fields...)
	case status >= 400:
		logger.Warn("request completed", fields...)
	default:
		logger.Info("request completed", fields...)
	}
}
