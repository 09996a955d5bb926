package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorTypeString(t *testing.T) {
	cases := []struct {
		et   ErrorType
		want string
	}{
		{ErrorTypeUnavailable, "unavailable"},
		{ErrorTypeMalformedResponse, "malformed_response"},
		{ErrorTypeEmptyResponse, "empty_response"},
		{ErrorTypeUnknown, "unknown"},
		{ErrorType(99), "invalid"},
	}
	for _, c := range cases {
		if got := c.et.String(); got != c.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", c.et, got, c.want)
		}
	}
}

func TestTypeOfClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"deadline", context.DeadlineExceeded, ErrorTypeUnavailable},
		{"rate limit", errors.New("429 too many requests"), ErrorTypeUnavailable},
		{"auth", errors.New("invalid api key"), ErrorTypeUnavailable},
		{"server error", errors.New("503 service unavailable"), ErrorTypeUnavailable},
		{"empty", errors.New("empty response from provider"), ErrorTypeEmptyResponse},
		{"json", errors.New("unexpected end of JSON input"), ErrorTypeMalformedResponse},
		{"other", errors.New("something odd"), ErrorTypeUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := TypeOf(c.err); got != c.want {
				t.Errorf("TypeOf(%v) = %s, want %s", c.err, got, c.want)
			}
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	inner := New(ErrorTypeMalformedResponse, errors.New("bad shape"))
	wrapped := fmt.Errorf("extractor: %w", inner)

	if got := TypeOf(wrapped); got != ErrorTypeMalformedResponse {
		t.Errorf("expected wrapped classification preserved, got %s", got)
	}
	if !IsMalformed(wrapped) {
		t.Error("expected IsMalformed true for wrapped malformed error")
	}
	if IsUnavailable(wrapped) {
		t.Error("expected IsUnavailable false for malformed error")
	}
}

func TestIsUnavailable(t *testing.T) {
	err := Newf(ErrorTypeUnavailable, "connect: %s", "refused")
	if !IsUnavailable(err) {
		t.Error("expected IsUnavailable true")
	}
	if IsUnavailable(nil) {
		t.Error("expected IsUnavailable false for nil")
	}
}
