package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/pkg/telemetry"
)

// GinMiddleware records request counts and latency on the Prometheus registry.
func GinMiddleware(m *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "/metrics" {
			return
		}
		m.ObserveAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
