package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID propagates a caller-supplied X-Request-ID or mints a uuid.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if inputType := c.GetString(inputTypeKey); inputType != "" {
			fields["input_type"] = inputType
		}
		entry := logrus.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Warn("request failed")
		default:
			entry.Info("request served")
		}
	}
}

func requestLogger(c *gin.Context) *logrus.Entry {
	return logrus.WithField("request_id", c.GetString(requestIDKey))
}
