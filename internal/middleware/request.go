package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-sync/internal/logx"
	"chat-sync/internal/observability"
	"chat-sync/internal/telemetry"
)

// RequestID makes sure every request carries an id, echoes it in the
// response and stores it in the request context for emitted events.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(observability.RequestIDHeader, id)
		}
		c.Writer.Header().Set(observability.RequestIDHeader, id)
		c.Request = c.Request.WithContext(telemetry.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := logx.Component("http")
		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		event.
			Str("request_id", observability.RequestIDFromRequest(c.Request)).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("remote_ip", observability.IPFromRequest(c.Request)).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}
