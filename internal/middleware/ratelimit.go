package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/authgw/internal/observability"
	"github.com/vyrodovalexey/authgw/internal/ratelimit"
)

// RateLimitConfig holds configuration for the rate limit middleware.
type RateLimitConfig struct {
	// Limiter is the admission checker. A nil limiter admits everything.
	Limiter ratelimit.Limiter

	// Logger for rejected requests.
	Logger observability.Logger
}

// RateLimit returns a middleware that applies per-IP rate limiting.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{Limiter: limiter})
}

// RateLimitWithConfig returns a rate limit middleware with custom
// configuration. Every request passes through admission; there is no
// path exemption.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limiter == nil {
		config.Limiter = ratelimit.NoopLimiter{}
	}
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		clientIP := GetClientIP(c)
		decision := config.Limiter.Admit(c.Request.Context(), clientIP)

		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := int(decision.RetryAfter.Seconds())
		c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))
		c.Header(HeaderRateLimit, strconv.Itoa(decision.Limit))

		config.Logger.Debug("rate limit exceeded",
			observability.String("clientIP", clientIP),
			observability.Int("limit", decision.Limit),
			observability.Int("retryAfter", retryAfter),
		)

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail": rateLimitedDetail,
		})
	}
}
