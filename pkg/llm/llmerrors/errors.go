// Package llmerrors provides structured error classification for LLM API interactions.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType represents different categories of LLM errors.
type ErrorType int8

const (
	// ErrorTypeUnavailable represents infrastructure failures calling the model:
	// network errors, auth failures, rate limiting, timeouts. Fatal to the turn.
	ErrorTypeUnavailable ErrorType = iota
	// ErrorTypeMalformedResponse represents a response that does not match the
	// requested shape (e.g. JSON mode returned unparseable text). Recoverable by
	// the owning component.
	ErrorTypeMalformedResponse
	// ErrorTypeEmptyResponse represents HTTP 200 with no content.
	ErrorTypeEmptyResponse
	// ErrorTypeUnknown is the default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnavailable:
		return "unavailable"
	case ErrorTypeMalformedResponse:
		return "malformed_response"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error wraps an underlying failure with its classification.
type Error struct {
	Err  error
	Type ErrorType
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(t ErrorType, err error) *Error {
	return &Error{Type: t, Err: err}
}

// Newf creates a classified error from a format string.
func Newf(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Err: fmt.Errorf(format, args...)}
}

// TypeOf returns the classification of err, classifying unwrapped errors on
// the fly.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Type
	}
	return classify(err)
}

// IsUnavailable reports whether err represents an infrastructure failure that
// must abort the turn.
func IsUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeUnavailable
}

// IsMalformed reports whether err represents a shape violation that the owning
// component absorbs locally.
func IsMalformed(err error) bool {
	t := TypeOf(err)
	return t == ErrorTypeMalformedResponse || t == ErrorTypeEmptyResponse
}

// classify maps raw SDK and transport errors to an ErrorType.
func classify(err error) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeUnavailable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		return ErrorTypeUnavailable
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"):
		return ErrorTypeUnavailable
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"),
		strings.Contains(msg, "503"), strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "connection reset"), strings.Contains(msg, "eof"),
		strings.Contains(msg, "timeout"):
		return ErrorTypeUnavailable
	case strings.Contains(msg, "empty response"):
		return ErrorTypeEmptyResponse
	case strings.Contains(msg, "invalid json"), strings.Contains(msg, "unmarshal"),
		strings.Contains(msg, "unexpected end of json"):
		return ErrorTypeMalformedResponse
	default:
		return ErrorTypeUnknown
	}
}
