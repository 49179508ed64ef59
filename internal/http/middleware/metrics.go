package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatstream-backend/internal/observability"
)

// Metrics records request counts and latency. Unmatched routes are folded into "unknown" so
// scanners cannot blow up label cardinality. For the stream endpoint latency covers the whole
// stream.
func Metrics(m *observability.Metrics, skip ...string) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(c *gin.Context) {
		if skipped[c.FullPath()] {
			c.Next()
			return
		}
		start := time.Now()
		m.APIInflightInc()
		defer m.APIInflightDec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
