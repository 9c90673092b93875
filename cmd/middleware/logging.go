package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := zlog.Logger.Info()
		switch {
		case status >= 500:
			ev = zlog.Logger.Error()
		case status >= 400:
			ev = zlog.Logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}
