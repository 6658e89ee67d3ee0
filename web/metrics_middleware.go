package web

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"quantforge/metrics"
)

// MetricsMiddleware 记录 HTTP 请求的 Prometheus 指标。
// 路径取路由模板而不是原始 URL，避免 :id 之类的参数撑爆标签基数。
func MetricsMiddleware() gin.HandlerFunc {
	pm := metrics.GetPrometheusMetrics()
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		pm.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
