package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"pharmastock/internal/infrastructure/metrics"
)

// Metrics records request counts, latency and in-flight requests.
// Paths are labelled with the route template to keep cardinality bounded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
