package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"igsync/pkg/logger"
)

// requestLogger logs every request once it has been handled.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		logger.LogRequest(log, c.Request.Method, path, c.Writer.Status(), float64(latency.Microseconds())/1000)

		for _, err := range c.Errors {
			log.WithError(err.Err).WithField("path", path).Error("Request error")
		}
	}
}
