package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIPExtractor resolves the real client IP from requests, handling
// X-Forwarded-For with trusted proxy validation. When no trusted proxies
// are configured, only RemoteAddr is used (secure default to prevent
// spoofed rate limit keys).
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates a new ClientIPExtractor with the given
// trusted proxy CIDRs. Single IPs are accepted and widened to /32 or
// /128. Invalid entries are silently skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the real client IP from the request.
// If no trusted proxies are configured, it returns RemoteAddr (port
// stripped). If RemoteAddr is a trusted proxy, it walks X-Forwarded-For
// right-to-left and returns the first non-trusted IP.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 {
		return remoteIP
	}

	if !e.isTrusted(remoteIP) {
		return remoteIP
	}

	return e.extractFromXFF(r, remoteIP)
}

// extractFromXFF parses X-Forwarded-For and returns the first
// non-trusted IP walking right-to-left, falling back to the direct
// peer when every hop in the chain is trusted.
func (e *ClientIPExtractor) extractFromXFF(r *http.Request, fallback string) string {
	xff := r.Header.Get(HeaderXForwardedFor)
	if xff == "" {
		return fallback
	}

	ips := strings.Split(xff, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(ips[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}

	return fallback
}

// isTrusted checks if the given IP string is within any trusted CIDR.
func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string. Handles both
// "192.168.1.1:8080" and "[::1]:8080" formats.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// ClientIP returns a middleware that resolves the client IP once per
// request and stores it in the gin context for the rate limiter and
// audit log.
func ClientIP(extractor *ClientIPExtractor) gin.HandlerFunc {
	if extractor == nil {
		extractor = NewClientIPExtractor(nil)
	}

	return func(c *gin.Context) {
		c.Set(ClientIPKey, extractor.Extract(c.Request))
		c.Next()
	}
}

// GetClientIP returns the resolved client IP from the context, falling
// back to gin's own resolution when the ClientIP middleware did not run.
func GetClientIP(c *gin.Context) string {
	if v, exists := c.Get(ClientIPKey); exists {
		if ip, ok := v.(string); ok && ip != "" {
			return ip
		}
	}
	return c.ClientIP()
}
