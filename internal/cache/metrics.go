package cache

import (
	"time"
)

// Operation status label values.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusNotFound = "not_found"
)

// record reports a cache operation to the shared metrics registry, the
// same one the server's metrics endpoint serves. No-op when metrics are
// not wired.
func (c *RedisCache) record(operation, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordCacheOp(operation, status, time.Since(start))
}
