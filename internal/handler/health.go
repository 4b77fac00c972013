package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"focelda-proxy-go/internal/config"
	"focelda-proxy-go/internal/credentials"
	"focelda-proxy-go/internal/model"
)

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	creds   *credentials.Credentials
	version model.Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, creds *credentials.Credentials, v model.Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, creds: creds, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. Credentials are never included.
func (h *HealthHandler) Status(c echo.Context) error {
	mode := "server"
	if h.cfg.Lambda {
		mode = "lambda"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "ok",
		"version":         string(h.version),
		"upstream_url":    h.cfg.Upstream.BaseURL,
		"timeout_seconds": h.cfg.Upstream.TimeoutSeconds,
		"auth_mode":       h.creds.AuthType(),
		"auth_source":     h.cfg.Auth.Source,
		"circuit_breaker": h.cfg.Upstream.CircuitBreaker.Enabled,
		"runtime":         mode,
	})
}
