package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/advflag/common/logger"
)

// Logger tags the request context for the handlers and logs one line per
// request. Health probes are not logged.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		fields := logger.LogFields{Component: "advflag.http"}
		if id, err := strconv.ParseInt(c.Param("id"), 10, 64); err == nil {
			fields.PostID = logger.Ptr(id)
		}
		ctx := logger.WithLogFields(c.Request.Context(), fields)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if path == "/health" {
			return
		}

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			slog.ErrorContext(ctx, "request failed", attrs...)
		case status >= 400:
			slog.WarnContext(ctx, "request error", attrs...)
		default:
			slog.InfoContext(ctx, "request", attrs...)
		}
	}
}
