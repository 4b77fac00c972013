// Package client provides the upstream HTTP client for the Focelda service.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"golang.org/x/net/html/charset"

	"focelda-proxy-go/internal/config"
	"focelda-proxy-go/internal/metrics"
	"focelda-proxy-go/internal/model"
)

// UpstreamResponse is a fully read upstream response. Body is UTF-8.
type UpstreamResponse struct {
	StatusCode  int
	Status      string // reason phrase only, e.g. "OK"
	ContentType string
	Body        string
}

// OK reports whether the status code is 2xx.
func (r *UpstreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// FoceldaClient issues exactly one GET per call against the upstream.
// It never retries.
type FoceldaClient struct {
	httpClient *http.Client
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFoceldaClient creates a FoceldaClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewFoceldaClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *FoceldaClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	c := &FoceldaClient{
		// No client-level Timeout: the per-call context deadline bounds
		// connect, headers and body read together.
		httpClient: &http.Client{Transport: transport},
		timeout:    cfg.Upstream.Timeout(),
		logger:     logger.With("component", "focelda_client"),
		metrics:    m,
	}

	if cb := cfg.Upstream.CircuitBreaker; cb.Enabled {
		c.breaker = newBreaker(cb, c.logger, m)
	}
	return c
}

func newBreaker(cfg config.CircuitBreakerConfig, logger *slog.Logger, m *metrics.Metrics) *gobreaker.CircuitBreaker {
	maxFailures := uint32(cfg.MaxFailures) //nolint:gosec // validated non-negative
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "focelda-upstream",
		MaxRequests: 1,
		Timeout:     time.Duration(cfg.OpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
			if m != nil {
				m.BreakerState.Set(float64(to))
			}
		},
	})
}

// Fetch GETs url with the given headers under the configured timeout and
// reads the whole body. Any failure is an *UpstreamError. An upstream HTTP
// error status is not a failure.
func (c *FoceldaClient) Fetch(ctx context.Context, url string, header http.Header) (*UpstreamResponse, error) {
	if c.breaker == nil {
		return c.fetch(ctx, url, header)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, url, header)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.recordError(model.ErrCircuitOpen)
			return nil, newUpstreamError(model.ErrCircuitOpen, err)
		}
		return nil, err
	}
	return out.(*UpstreamResponse), nil
}

func (c *FoceldaClient) fetch(ctx context.Context, url string, header http.Header) (*UpstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.recordError(model.ErrNetwork)
		return nil, newUpstreamError(model.ErrNetwork, fmt.Errorf("build upstream request: %w", err))
	}
	req.Header = header

	c.logger.Debug("upstream request", "url", url)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		t := classifyError(err)
		c.observe("error", start)
		c.recordError(t)
		return nil, newUpstreamError(t, err)
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	body, err := readBody(resp.Body, contentType)
	c.observe(outcome(resp.StatusCode), start)
	if err != nil {
		t := model.ErrRead
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t = model.ErrTimeout
		}
		c.recordError(t)
		return nil, newUpstreamError(t, err)
	}

	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &UpstreamResponse{
		StatusCode:  resp.StatusCode,
		Status:      statusText(resp),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// readBody reads r fully and returns it as UTF-8. Bytes are transcoded only
// when the charset is certain (a Content-Type charset parameter or a BOM) or
// when the body is not valid UTF-8; otherwise they are kept as they are.
func readBody(r io.Reader, contentType string) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upstream body: %w", err)
	}
	if len(raw) == 0 {
		return "", nil
	}

	enc, _, certain := charset.DetermineEncoding(raw, contentType)
	if !certain && utf8.Valid(raw) {
		return string(raw), nil
	}

	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode upstream body: %w", err)
	}
	return string(decoded), nil
}

// statusText strips the numeric code from resp.Status ("200 OK" -> "OK").
func statusText(resp *http.Response) string {
	if text := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); text != "" && text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func outcome(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	}
	return "2xx"
}

func (c *FoceldaClient) observe(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
}

func (c *FoceldaClient) recordError(t model.ErrorType) {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(string(t)).Inc()
	}
	c.logger.Warn("upstream call failed", "error_type", string(t))
}
