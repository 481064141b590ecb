package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"studymate/internal/metrics"
)

// Metrics records request counts and latency per route template, so path
// parameters do not blow up label cardinality.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
