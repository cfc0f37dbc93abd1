package router

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger creates a gin middleware for logging requests using zap.
// Errors attached with c.Error/AbortWithError are included in the entry.
func RequestLogger(log *zap.Logger, quietPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Process request
		c.Next()

		status := c.Writer.Status()
		path := c.Request.URL.Path
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int("size", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		default:
			for _, prefix := range quietPrefixes {
				if strings.HasPrefix(path, prefix) {
					return
				}
			}
			// Log successful requests at the Debug level to reduce noise
			log.Debug("Request processed", fields...)
		}
	}
}
