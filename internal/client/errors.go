package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"focelda-proxy-go/internal/model"
)

// UpstreamError is returned by Fetch when no usable upstream response was
// obtained. Type is the envelope error classification.
type UpstreamError struct {
	Type    model.ErrorType
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is matches another *UpstreamError of the same Type.
func (e *UpstreamError) Is(target error) bool {
	if t, ok := target.(*UpstreamError); ok {
		return e.Type == t.Type
	}
	return false
}

// classifyError maps a transport error onto the envelope taxonomy.
func classifyError(err error) model.ErrorType {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return model.ErrTimeout
	case errors.As(err, &dnsErr) && !dnsErr.IsTimeout:
		return model.ErrHostNotFound
	case errors.Is(err, syscall.ECONNREFUSED):
		return model.ErrConnectionRefused
	case errors.As(err, &netErr) && netErr.Timeout():
		return model.ErrTimeout
	}
	return model.ErrNetwork
}

func messageFor(t model.ErrorType) string {
	switch t {
	case model.ErrTimeout:
		return "upstream request timed out"
	case model.ErrConnectionRefused:
		return "upstream refused the connection"
	case model.ErrHostNotFound:
		return "upstream host not found"
	case model.ErrRead:
		return "failed to read upstream response"
	case model.ErrCircuitOpen:
		return "upstream circuit breaker is open"
	}
	return "upstream request failed"
}

func newUpstreamError(t model.ErrorType, cause error) *UpstreamError {
	return &UpstreamError{Type: t, Message: messageFor(t), Cause: cause}
}
