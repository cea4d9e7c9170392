// Package middleware provides the gin middleware chain for the auth
// gateway: client IP resolution, rate limiting, request IDs, audit
// logging, panic recovery, and tracing.
package middleware

// HTTP header constants.
const (
	// HeaderRetryAfter is the Retry-After header name.
	HeaderRetryAfter = "Retry-After"

	// HeaderRateLimit carries the configured per-minute limit on
	// rejected responses.
	HeaderRateLimit = "X-Rate-Limit"

	// HeaderXRequestID is the X-Request-ID header name.
	HeaderXRequestID = "X-Request-ID"

	// HeaderXForwardedFor is the X-Forwarded-For header name.
	HeaderXForwardedFor = "X-Forwarded-For"

	// HeaderXProcessTime reports wall-clock handler time in seconds.
	HeaderXProcessTime = "X-Process-Time"
)

// rateLimitedDetail is the response body detail for rejected requests.
const rateLimitedDetail = "Rate limit exceeded, please try again later."

// Context keys set by middleware for downstream handlers.
const (
	// ClientIPKey is the gin context key holding the resolved client IP.
	ClientIPKey = "clientIP"

	// RequestIDKey is the gin context key holding the request ID.
	RequestIDKey = "requestID"
)
