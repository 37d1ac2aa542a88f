package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		}
		if user := CurrentUser(c); user != nil {
			attrs = append(attrs, slog.String("user", user.Username))
		}

		switch {
		case status >= 500:
			log.Error("Request", attrs...)
		case status >= 400:
			log.Warn("Request", attrs...)
		default:
			log.Info("Request", attrs...)
		}
	}
}
