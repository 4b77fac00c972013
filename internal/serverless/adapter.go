// Package serverless runs the proxy's HTTP handler inside AWS Lambda, fed by
// API Gateway HTTP API (payload 2.0) or Lambda Function URL events.
package serverless

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Adapter translates Lambda events into http.Requests for handler and the
// recorded responses back into events.
type Adapter struct {
	handler http.Handler
	logger  *slog.Logger
}

// NewAdapter creates an Adapter around handler.
func NewAdapter(handler http.Handler, logger *slog.Logger) *Adapter {
	return &Adapter{
		handler: handler,
		logger:  logger.With("component", "lambda_adapter"),
	}
}

// Start hands control to the Lambda runtime. It does not return.
func (a *Adapter) Start() {
	a.logger.Info("starting lambda runtime",
		"function", lambdacontext.FunctionName,
		"version", lambdacontext.FunctionVersion,
		"memory_mb", lambdacontext.MemoryLimitInMB,
	)
	lambda.Start(a.Handle)
}

// Handle serves one invocation. Conversion failures are answered with a 400
// response rather than an invocation error.
func (a *Adapter) Handle(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		a.logger.Debug("invocation", "aws_request_id", lc.AwsRequestID, "route", ev.RouteKey)
	}

	req, err := NewRequest(ctx, ev)
	if err != nil {
		a.logger.Warn("invalid lambda event", "err", err)
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"invalid request event"}`,
		}, nil
	}

	w := newResponseWriter()
	a.handler.ServeHTTP(w, req)
	return w.event(), nil
}

// NewRequest builds the http.Request described by ev.
func NewRequest(ctx context.Context, ev events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	path := ev.RawPath
	if path == "" {
		path = ev.RequestContext.HTTP.Path
	}
	if path == "" {
		path = "/"
	}

	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	u.RawQuery = ev.RawQueryString

	body := []byte(ev.Body)
	if ev.IsBase64Encoded {
		body, err = base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			return nil, fmt.Errorf("decode base64 body: %w", err)
		}
	}

	method := ev.RequestContext.HTTP.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.RequestURI(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for k, v := range ev.Headers {
		req.Header.Set(k, v)
	}
	if len(ev.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(ev.Cookies, "; "))
	}
	if req.Header.Get("X-Request-Id") == "" && ev.RequestContext.RequestID != "" {
		req.Header.Set("X-Request-Id", ev.RequestContext.RequestID)
	}

	req.Host = ev.RequestContext.DomainName
	if req.Host == "" {
		req.Host = req.Header.Get("Host")
	}
	if ip := ev.RequestContext.HTTP.SourceIP; ip != "" {
		req.RemoteAddr = net.JoinHostPort(ip, "0")
	}
	req.RequestURI = u.RequestURI()
	req.ContentLength = int64(len(body))

	return req, nil
}

// responseWriter buffers a response for conversion into an event.
type responseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(p)
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) event() events.APIGatewayV2HTTPResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}

	resp := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    make(map[string]string, len(w.header)),
	}
	for k, vs := range w.header {
		if k == "Set-Cookie" {
			resp.Cookies = append(resp.Cookies, vs...)
			continue
		}
		resp.Headers[k] = strings.Join(vs, ", ")
	}

	if b := w.body.Bytes(); utf8.Valid(b) {
		resp.Body = string(b)
	} else {
		resp.Body = base64.StdEncoding.EncodeToString(b)
		resp.IsBase64Encoded = true
	}
	return resp
}
