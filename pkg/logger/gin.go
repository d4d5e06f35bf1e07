package logger

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// probePaths are logged at debug; load balancers hit them constantly.
var probePaths = map[string]bool{"/healthz": true, "/readyz": true}

// Middleware tags each request with a request id and logs one summary line
// when it completes. A gateway call holds its request for the whole call, so
// WebSocket upgrades also get a line when they open.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		began := time.Now()

		rid := strings.TrimSpace(c.GetHeader(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)

		rl := l.With("request_id", rid)
		c.Set(ginLoggerKey, rl)
		c.Request = c.Request.WithContext(With(c.Request.Context(), rl))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
		if upgrade {
			rl.Info("upgrade opened", "path", route, "remote", c.ClientIP())
		}

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", route,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(began).Milliseconds(),
		}
		if sub := c.GetString("subject"); sub != "" {
			attrs = append(attrs, "subject", sub)
		}
		msg := "request"
		if upgrade {
			msg = "upgrade closed"
		}

		switch {
		case len(c.Errors) > 0:
			rl.Error(msg, append(attrs, "errors", c.Errors.String())...)
		case probePaths[route]:
			rl.Debug(msg, attrs...)
		default:
			rl.Info(msg, attrs...)
		}
	}
}

// FromGin returns the request logger set by Middleware, or slog.Default.
func FromGin(c *gin.Context) *slog.Logger {
	if l, ok := c.Value(ginLoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
