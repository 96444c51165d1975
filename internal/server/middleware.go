package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"tariff-tracker/internal/logging"
)

// requestIDHeader carries the request id in both directions.
const requestIDHeader = "X-Request-ID"

// requestID attaches a request-scoped logger to the request context,
// reusing the caller's X-Request-ID when present.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := logging.WithLogger(c.Request.Context(), s.cfg.Logger)
		ctx, id := logging.WithRequestID(ctx, c.GetHeader(requestIDHeader))
		c.Request = c.Request.WithContext(ctx)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger := logging.FromContext(c.Request.Context())
		event := logger.Info()
		if c.Writer.Status() >= 500 {
			event = logger.Error()
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", logging.MaskSecrets(c.Errors.String()))
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// timeout bounds each request by server.request_timeout.
func (s *Server) timeout() gin.HandlerFunc {
	d := s.cfg.Settings.Server.RequestTimeout
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
