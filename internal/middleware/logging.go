// Package middleware provides Echo middleware for logging, CORS, security
// headers and metrics.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// EnvelopeKindKey is the echo.Context key under which the proxy handler
// stores the kind of envelope it rendered.
const EnvelopeKindKey = "envelope_kind"

// RequestLogger returns an Echo middleware that logs each request with slog.
// Requests to quiet paths (health probes, metric scrapes) are logged at debug.
func RequestLogger(logger *slog.Logger, quiet ...string) echo.MiddlewareFunc {
	quietPaths := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		quietPaths[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			res := c.Response()
			status := responseStatus(c, err)

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case quietPaths[req.URL.Path]:
				level = slog.LevelDebug
			}

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if kind, ok := c.Get(EnvelopeKindKey).(string); ok {
				attrs = append(attrs, "envelope", kind)
			}

			logger.Log(req.Context(), level, "request", attrs...)
			return err
		}
	}
}
