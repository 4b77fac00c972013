// Package service implements the core proxy forwarding logic: it builds the
// upstream call, classifies the answer and assembles the response envelope.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"focelda-proxy-go/internal/classify"
	"focelda-proxy-go/internal/client"
	"focelda-proxy-go/internal/config"
	"focelda-proxy-go/internal/credentials"
	"focelda-proxy-go/internal/metrics"
	"focelda-proxy-go/internal/model"
)

const acceptHeader = "application/json, text/xml, application/xml, text/plain, */*"

const emptyBodyWarning = "upstream returned an empty body; this can be normal for this endpoint"

// KnownEndpoints are the upstream operations advertised on the info payload.
var KnownEndpoints = []string{
	"/get_articolobyid/{id}",
	"/get_articoli/{timestamp}",
	"/get_caratteristichebyid/{id}",
	"/get_cliente/{cliente}/{articolo}",
	"/get_articolobyofferta/{promo}",
}

// ProxyService turns a ProxyRequest into exactly one Envelope.
type ProxyService struct {
	client  *client.FoceldaClient
	cfg     *config.Config
	creds   *credentials.Credentials
	logger  *slog.Logger
	metrics *metrics.Metrics
	version model.Version
	now     func() time.Time
}

// NewProxyService creates a ProxyService. The metrics parameter may be nil.
func NewProxyService(
	c *client.FoceldaClient,
	cfg *config.Config,
	creds *credentials.Credentials,
	logger *slog.Logger,
	m *metrics.Metrics,
	v model.Version,
) *ProxyService {
	return &ProxyService{
		client:  c,
		cfg:     cfg,
		creds:   creds,
		logger:  logger.With("component", "proxy_service"),
		metrics: m,
		version: v,
		now:     time.Now,
	}
}

// BuildURL concatenates the base URL and endpoint verbatim. The endpoint is
// not validated or normalized.
func (s *ProxyService) BuildURL(endpoint string) string {
	return s.cfg.Upstream.BaseURL + endpoint
}

func (s *ProxyService) buildHeaders() http.Header {
	h := make(http.Header)
	h.Set("Accept", acceptHeader)
	h.Set("User-Agent", "Focelda-Proxy/"+string(s.version))
	h.Set("Cache-Control", "no-cache")
	s.creds.Apply(h)
	return h
}

// Forward performs the single upstream GET for pr and returns its envelope.
// It never returns an error: every failure is described by the envelope.
func (s *ProxyService) Forward(ctx context.Context, pr model.ProxyRequest) model.Envelope {
	url := s.BuildURL(pr.Endpoint)

	s.logger.Info("forwarding request",
		"method", pr.Method,
		"endpoint", pr.Endpoint,
		"auth", s.creds.AuthType(),
		"username", s.creds.MaskedUsername(),
	)

	resp, err := s.client.Fetch(ctx, url, s.buildHeaders())
	if err != nil {
		return s.record(s.failure(url, pr.Endpoint, err), "")
	}

	s.logger.Info("upstream response",
		"endpoint", pr.Endpoint,
		"status", resp.StatusCode,
		"content_type", resp.ContentType,
		"length", len(resp.Body),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return s.record(s.denied(url, pr.Endpoint, resp.StatusCode), "")
	case http.StatusForbidden:
		return s.record(s.denied(url, pr.Endpoint, resp.StatusCode), "")
	}

	env := s.result(url, pr.Endpoint, resp)
	return s.record(env, env.Result.ResponseType)
}

// Reject builds the failure envelope for a request that could not be parsed.
func (s *ProxyService) Reject(endpoint string, err error) model.Envelope {
	return s.record(model.Envelope{Failure: &model.Failure{
		Success:    false,
		Error:      err.Error(),
		ErrorType:  model.ErrInvalidRequest,
		Endpoint:   endpoint,
		Timestamp:  model.Timestamp(s.now()),
		Auth:       s.authAttempt(),
		Suggestion: suggestionFor(model.ErrInvalidRequest, s.cfg),
	}}, "")
}

// Info returns the informational payload served when a request names
// nothing to call. proxyPath is the route the examples point at.
func (s *ProxyService) Info(proxyPath string) model.Envelope {
	endpoints := make([]string, len(KnownEndpoints))
	copy(endpoints, KnownEndpoints)

	return s.record(model.Envelope{Info: &model.Info{
		Status:  "Focelda proxy active",
		Version: string(s.version),
		Auth: model.InfoAuth{
			Mode:       s.creds.AuthType(),
			Username:   s.creds.MaskedUsername(),
			Configured: s.creds.Enabled(),
		},
		Endpoints: endpoints,
		Examples: map[string]string{
			"articolo":          proxyPath + "?endpoint=" + s.cfg.Upstream.DefaultEndpoint,
			"articoli_30giorni": proxyPath + "?endpoint=/get_articoli/2025-08-01-00.00.00.000000",
		},
		Timestamp: model.Timestamp(s.now()),
	}}, "")
}

func (s *ProxyService) result(url, endpoint string, resp *client.UpstreamResponse) model.Envelope {
	c := classify.Classify(resp.Body)

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "unknown"
	}

	r := &model.Result{
		Success:      resp.OK(),
		HTTPCode:     resp.StatusCode,
		HTTPStatus:   resp.Status,
		ContentType:  contentType,
		ResponseType: string(c.Type),
		URL:          url,
		Endpoint:     endpoint,
		Data:         c.Data,
		Raw:          truncate(resp.Body, s.cfg.Envelope.RawLimit),
		Preview:      truncate(resp.Body, s.cfg.Envelope.PreviewLimit),
		FullLength:   utf8.RuneCountInString(resp.Body),
		Timestamp:    model.Timestamp(s.now()),
		Auth: model.AuthUsed{
			Used:     s.creds.Enabled(),
			Type:     s.creds.AuthType(),
			Username: s.creds.MaskedUsername(),
		},
	}
	if resp.OK() && resp.Body == "" {
		r.Warning = emptyBodyWarning
	}
	return model.Envelope{Result: r}
}

func (s *ProxyService) denied(url, endpoint string, status int) model.Envelope {
	d := &model.Denied{
		Success:   false,
		HTTPCode:  status,
		URL:       url,
		Endpoint:  endpoint,
		Timestamp: model.Timestamp(s.now()),
	}

	if status == http.StatusUnauthorized {
		d.Error = "authentication failed: invalid credentials"
		d.ErrorType = model.ErrAuthenticationFailed
		d.Message = "the upstream rejected the configured credentials; check username and password"
		d.CredentialsUsed = &model.CredentialsUsed{
			Username: s.creds.MaskedUsername(),
			AuthType: s.creds.AuthType(),
		}
	} else {
		d.Error = "access denied"
		d.ErrorType = model.ErrAccessDenied
		d.Message = "the credentials are valid but not allowed to call this endpoint"
	}

	s.logger.Warn("upstream denied request", "endpoint", endpoint, "status", status)
	return model.Envelope{Denied: d}
}

func (s *ProxyService) failure(url, endpoint string, err error) model.Envelope {
	errType := model.ErrNetwork
	var ue *client.UpstreamError
	if errors.As(err, &ue) {
		errType = ue.Type
	}

	s.logger.Error("upstream call failed",
		"endpoint", endpoint,
		"error_type", string(errType),
		"err", err,
	)

	return model.Envelope{Failure: &model.Failure{
		Success:    false,
		Error:      err.Error(),
		ErrorType:  errType,
		URL:        url,
		Endpoint:   endpoint,
		Timestamp:  model.Timestamp(s.now()),
		Auth:       s.authAttempt(),
		Suggestion: suggestionFor(errType, s.cfg),
	}}
}

func (s *ProxyService) authAttempt() model.AuthAttempt {
	return model.AuthAttempt{
		Attempted: s.creds.Enabled(),
		Type:      s.creds.AuthType(),
		Username:  s.creds.MaskedUsername(),
	}
}

func (s *ProxyService) record(env model.Envelope, responseType string) model.Envelope {
	if s.metrics != nil {
		s.metrics.Envelopes.WithLabelValues(env.Kind(), responseType).Inc()
	}
	return env
}

func suggestionFor(t model.ErrorType, cfg *config.Config) string {
	switch t {
	case model.ErrTimeout:
		return fmt.Sprintf("the service did not answer within %s; it may be offline or overloaded", cfg.Upstream.Timeout())
	case model.ErrConnectionRefused:
		return "nothing accepted the connection; check that the service is running on the configured port"
	case model.ErrHostNotFound:
		return "the upstream host name does not resolve; check upstream.base_url"
	case model.ErrCircuitOpen:
		return fmt.Sprintf("recent upstream calls failed; retry in up to %ds", cfg.Upstream.CircuitBreaker.OpenSeconds)
	case model.ErrRead:
		return "the connection dropped while the body was being read; retry the request"
	case model.ErrInvalidRequest:
		return `send a JSON body such as {"endpoint": "` + cfg.Upstream.DefaultEndpoint + `"}`
	}
	return "if the problem persists the service may be offline or the credentials may be wrong"
}

// truncate keeps at most limit characters of s without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
