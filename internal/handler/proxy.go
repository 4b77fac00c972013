package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"focelda-proxy-go/internal/config"
	"focelda-proxy-go/internal/middleware"
	"focelda-proxy-go/internal/model"
	"focelda-proxy-go/internal/service"
)

// ProxyHandler serves the proxy endpoint. Every GET or POST that reaches it is
// answered with exactly one envelope and transport status 200.
type ProxyHandler struct {
	service         *service.ProxyService
	defaultEndpoint string
	logger          *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:         svc,
		defaultEndpoint: cfg.Upstream.DefaultEndpoint,
		logger:          logger.With("component", "proxy_handler"),
	}
}

// Handle resolves the endpoint and forwards it, or returns the info payload
// when the request names nothing to call.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	res, err := resolveEndpoint(req, c.QueryParams(), h.defaultEndpoint)
	if err != nil {
		h.logger.Warn("rejecting request", "err", err, "method", req.Method)
		return h.render(c, h.service.Reject(res.Endpoint, err))
	}
	if res.Info {
		return h.render(c, h.service.Info(c.Path()))
	}

	pr := model.ProxyRequest{
		Method:   req.Method,
		Endpoint: res.Endpoint,
	}
	return h.render(c, h.service.Forward(req.Context(), pr))
}

// Preflight answers CORS preflight requests with an empty 200. The CORS
// middleware has already set the headers.
func (h *ProxyHandler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// render is the single place envelopes are written.
func (h *ProxyHandler) render(c echo.Context, env model.Envelope) error {
	c.Set(middleware.EnvelopeKindKey, env.Kind())
	return c.JSON(http.StatusOK, env)
}

// resolution is the outcome of reading the endpoint selector.
type resolution struct {
	Endpoint string
	Info     bool
}

var errBodyNotObject = errors.New("request body must be a JSON object")

// resolveEndpoint reads the endpoint from the query (GET) or the JSON body
// (POST). With no endpoint anywhere and no other parameters the request is an
// info request; otherwise a missing endpoint falls back to defaultEndpoint.
// An empty or null endpoint counts as no endpoint.
func resolveEndpoint(req *http.Request, query url.Values, defaultEndpoint string) (resolution, error) {
	queryEndpoint := query.Get("endpoint")

	var (
		bodyEndpoint string
		bodyFields   map[string]json.RawMessage
	)
	if req.Method == http.MethodPost && req.Body != nil {
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			return resolution{Endpoint: queryEndpoint}, fmt.Errorf("read request body: %w", err)
		}
		if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			if err := json.Unmarshal(raw, &bodyFields); err != nil {
				return resolution{Endpoint: queryEndpoint}, fmt.Errorf("invalid JSON body: %w", errBodyNotObject)
			}
			if v, ok := bodyFields["endpoint"]; ok && string(v) != "null" {
				if err := json.Unmarshal(v, &bodyEndpoint); err != nil {
					return resolution{Endpoint: queryEndpoint}, errors.New("invalid JSON body: endpoint must be a string")
				}
			}
		}
	}

	if queryEndpoint == "" && bodyEndpoint == "" && otherKeys(query) == 0 && otherKeys(bodyFields) == 0 {
		return resolution{Info: true}, nil
	}

	endpoint := queryEndpoint
	if req.Method == http.MethodPost {
		endpoint = bodyEndpoint
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return resolution{Endpoint: endpoint}, nil
}

// otherKeys counts the keys of m other than "endpoint".
func otherKeys[V any](m map[string]V) int {
	n := len(m)
	if _, ok := m["endpoint"]; ok {
		n--
	}
	return n
}
