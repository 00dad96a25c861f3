package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bizbackend/component"
	"github.com/kbukum/bizbackend/version"
)

var startTime = time.Now()

// Info reports the build, uptime and overall health.
func Info(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		components := check(c.Request.Context(), checker)
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"build":      version.Get(),
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"status":     component.Worst(components),
			"components": components,
		})
	}
}
