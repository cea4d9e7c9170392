package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authgw/internal/ratelimit"
)

// mockLimiter is a Limiter returning a canned decision.
type mockLimiter struct {
	decision *ratelimit.Decision
	lastIP   string
}

func (m *mockLimiter) Admit(_ context.Context, clientIP string) *ratelimit.Decision {
	m.lastIP = clientIP
	return m.decision
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := &mockLimiter{decision: &ratelimit.Decision{Allowed: true, Limit: 100}}

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderRetryAfter))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := &mockLimiter{decision: &ratelimit.Decision{
		Allowed:    false,
		Limit:      10,
		RetryAfter: 42 * time.Second,
	}}

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "10", w.Header().Get(HeaderRateLimit))
	assert.JSONEq(t, `{"detail":"Rate limit exceeded, please try again later."}`, w.Body.String())
}

func TestRateLimit_NoPathExemption(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := &mockLimiter{decision: &ratelimit.Decision{Allowed: false, Limit: 1, RetryAfter: time.Second}}

	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/v1/utils/api-status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/utils/api-status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, limiter.lastIP)
}

func TestRateLimit_UsesResolvedClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := &mockLimiter{decision: &ratelimit.Decision{Allowed: true, Limit: 100}}

	router := gin.New()
	router.Use(ClientIP(NewClientIPExtractor([]string{"10.0.0.0/8"})))
	router.Use(RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.5:12345"
	req.Header.Set(HeaderXForwardedFor, "203.0.113.7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "203.0.113.7", limiter.lastIP)
}

func TestRateLimit_NilLimiterAdmitsEverything(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RateLimitWithConfig(RateLimitConfig{}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
