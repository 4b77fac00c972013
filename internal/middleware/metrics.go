package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"focelda-proxy-go/internal/metrics"
)

// MetricsMiddleware records request count, latency and in-flight requests.
// Requests to skipPath, the scrape endpoint, are not counted.
func MetricsMiddleware(m *metrics.Metrics, skipPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if skipPath != "" && req.URL.Path == skipPath {
				return next(c)
			}

			m.RequestsInFlight.Inc()
			start := time.Now()
			err := next(c)
			m.RequestsInFlight.Dec()

			labels := []string{
				metrics.NormalizeMethod(req.Method),
				strconv.Itoa(responseStatus(c, err)),
				metrics.NormalizePath(req.URL.Path),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// responseStatus is the status the client will see. A returned
// *echo.HTTPError is written by the error handler after the middleware chain.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if err != nil && errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
