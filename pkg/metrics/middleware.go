package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// MonitorMiddleware 以路由模板作为 path 标签，未匹配的请求归到 "unmatched"
func MonitorMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()),
			time.Since(began), max(c.Request.ContentLength, 0), int64(max(c.Writer.Size(), 0)))
	}
}
