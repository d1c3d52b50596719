package web

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"smabacktest/logger"
	"smabacktest/metrics"
)

// GinLoggerMiddleware 请求日志与指标
// logAll=true 时全量写入 Web 日志；否则仅记录错误请求 (状态码 >= 400)
func GinLoggerMiddleware(logAll bool) gin.HandlerFunc {
	pm := metrics.GetPrometheusMetrics()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		pm.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, latency)

		if !logAll && status < 400 {
			return
		}

		msg := fmt.Sprintf("[GIN] %d | %v | %s | %-7s %s", status, latency, c.ClientIP(), c.Request.Method, path)
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			msg += " | Error: " + errs
		}
		logger.WriteWebLog(msg)
	}
}
