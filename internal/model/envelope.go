// Package model defines the request and envelope types shared across the proxy.
//
// Every call to the proxy endpoint is answered with exactly one Envelope and
// transport status 200. Clients decide success from the envelope's "success"
// and "httpCode" fields, never from the HTTP status line.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrorType classifies why a proxied call failed.
type ErrorType string

const (
	ErrTimeout              ErrorType = "Timeout"
	ErrConnectionRefused    ErrorType = "ConnectionRefused"
	ErrHostNotFound         ErrorType = "HostNotFound"
	ErrNetwork              ErrorType = "NetworkError"
	ErrAuthenticationFailed ErrorType = "AuthenticationFailed"
	ErrAccessDenied         ErrorType = "AccessDenied"
	ErrRead                 ErrorType = "ReadError"
	ErrInvalidRequest       ErrorType = "InvalidRequest"
	ErrCircuitOpen          ErrorType = "CircuitOpen"
)

// TimestampLayout renders envelope timestamps as UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t for an envelope.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ProxyRequest is the normalized inbound request: which upstream operation to call.
type ProxyRequest struct {
	Method   string
	Endpoint string
}

// AuthUsed describes the credentials attached to a completed upstream call.
type AuthUsed struct {
	Used     bool   `json:"used"`
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
}

// AuthAttempt describes the credentials attached to a failed upstream call.
type AuthAttempt struct {
	Attempted bool   `json:"attempted"`
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
}

// CredentialsUsed is echoed back when the upstream rejects the credentials.
// It never carries the password.
type CredentialsUsed struct {
	Username string `json:"username"`
	AuthType string `json:"auth_type"`
}

// Result is the envelope for any upstream response other than 401/403,
// including non-2xx statuses (Success is then false).
type Result struct {
	Success      bool     `json:"success"`
	HTTPCode     int      `json:"httpCode"`
	HTTPStatus   string   `json:"httpStatus"`
	ContentType  string   `json:"contentType"`
	ResponseType string   `json:"responseType"`
	URL          string   `json:"url"`
	Endpoint     string   `json:"endpoint"`
	Data         any      `json:"data"`
	Raw          string   `json:"raw"`
	Preview      string   `json:"preview"`
	FullLength   int      `json:"fullLength"`
	Timestamp    string   `json:"timestamp"`
	Auth         AuthUsed `json:"auth"`
	Warning      string   `json:"warning,omitempty"`
}

// Denied is the envelope for upstream 401 and 403 responses.
type Denied struct {
	Success         bool             `json:"success"`
	Error           string           `json:"error"`
	ErrorType       ErrorType        `json:"errorType"`
	HTTPCode        int              `json:"httpCode"`
	Message         string           `json:"message"`
	CredentialsUsed *CredentialsUsed `json:"credentials_used,omitempty"`
	URL             string           `json:"url"`
	Endpoint        string           `json:"endpoint"`
	Timestamp       string           `json:"timestamp"`
}

// Failure is the envelope for calls that never produced an upstream response.
type Failure struct {
	Success    bool        `json:"success"`
	Error      string      `json:"error"`
	ErrorType  ErrorType   `json:"errorType"`
	URL        string      `json:"url,omitempty"`
	Endpoint   string      `json:"endpoint"`
	Timestamp  string      `json:"timestamp"`
	Auth       AuthAttempt `json:"auth"`
	Suggestion string      `json:"suggestion"`
}

// InfoAuth is the credential summary shown on the info payload.
type InfoAuth struct {
	Mode       string `json:"mode"`
	Username   string `json:"username,omitempty"`
	Configured bool   `json:"configured"`
}

// Info is returned instead of proxying when the request names nothing to call.
type Info struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Auth      InfoAuth          `json:"auth"`
	Endpoints []string          `json:"endpoints"`
	Examples  map[string]string `json:"examples"`
	Timestamp string            `json:"timestamp"`
}

// Envelope is the tagged variant rendered as the proxy's response body.
// Exactly one field is set.
type Envelope struct {
	Result  *Result
	Denied  *Denied
	Failure *Failure
	Info    *Info
}

var errEmptyEnvelope = errors.New("envelope has no variant set")

// MarshalJSON renders whichever variant is set.
func (e Envelope) MarshalJSON() ([]byte, error) {
	switch {
	case e.Result != nil:
		return json.Marshal(e.Result)
	case e.Denied != nil:
		return json.Marshal(e.Denied)
	case e.Failure != nil:
		return json.Marshal(e.Failure)
	case e.Info != nil:
		return json.Marshal(e.Info)
	}
	return nil, errEmptyEnvelope
}

// Kind names the set variant; used for logs and metrics.
func (e Envelope) Kind() string {
	switch {
	case e.Result != nil:
		return "result"
	case e.Denied != nil:
		return "denied"
	case e.Failure != nil:
		return "failure"
	case e.Info != nil:
		return "info"
	}
	return "empty"
}

// Succeeded reports whether the envelope describes a successful upstream call.
func (e Envelope) Succeeded() bool {
	return e.Result != nil && e.Result.Success
}

// Version is the build version, injected so handlers and the info payload
// can report it.
type Version string
