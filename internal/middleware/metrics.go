package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"crm-pipeline-api/internal/metrics"
)

const unmatchedRoute = "unmatched"

// Metrics records request count and latency labelled by route pattern.
// Probes, the scrape endpoint and the board websocket are not recorded.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || metrics.ShouldSkipEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
