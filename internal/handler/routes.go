package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"focelda-proxy-go/internal/config"
	"focelda-proxy-go/internal/metrics"
)

// ProxyPath is the route of the proxy endpoint.
const ProxyPath = "/api/focelda"

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, health *HealthHandler, cfg *config.Config, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	e.GET(ProxyPath, proxy.Handle)
	e.POST(ProxyPath, proxy.Handle)
	e.OPTIONS(ProxyPath, proxy.Preflight)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
