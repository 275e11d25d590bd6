package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evaldesk/appraisal-api/internal/service"
)

// Probe and scrape endpoints are excluded so recurring health checks do not
// drown out appraisal traffic in the request histograms.
var unobservedPaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// Metrics captures per-request latency and status for Prometheus.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, skip := unobservedPaths[path]; skip {
			return
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
