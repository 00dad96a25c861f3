package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bizbackend/logger"
)

var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// RequestLogger logs every request except probes, at a level derived from
// the status code.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if probePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		fields := logger.Fields(
			"method", c.Request.Method,
			"path", c.FullPath(),
			logger.FieldStatus, status,
			logger.FieldDuration, latency.Milliseconds(),
		)
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}
		if len(c.Errors) > 0 {
			fields[logger.FieldError] = c.Errors.Last().Error()
		}
		if latency > 500*time.Millisecond {
			fields["slow"] = true
		}
		logByStatus(log.WithContext(c.Request.Context()), fields, status)
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Debug("Request completed", fields)
	}
}
