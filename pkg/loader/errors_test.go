package loader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/Sternrassler/lazyload/pkg/ratelimit"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{200, ""},
		{304, ""},
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ""},
		{"server", &HTTPError{StatusCode: 502, Class: ErrorClassServer}, ErrorClassServer},
		{"wrapped client", fmt.Errorf("load: %w", &HTTPError{StatusCode: 404, Class: ErrorClassClient}), ErrorClassClient},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorClassNetwork},
		{"timeout", context.DeadlineExceeded, ErrorClassNetwork},
		{"cancelled", context.Canceled, ""},
		{"circuit open", ErrCircuitOpen, ""},
		{"budget exhausted", fmt.Errorf("%w: resets in 3s", ratelimit.ErrBudgetExhausted), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{"", false},
	}

	for _, tt := range tests {
		if got := shouldRetry(tt.class); got != tt.want {
			t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestHTTPError(t *testing.T) {
	inner := errors.New("body read")
	tests := []struct {
		name string
		err  *HTTPError
		want string
	}{
		{
			name: "without cause",
			err:  &HTTPError{StatusCode: 500, Class: ErrorClassServer, Message: "500 Internal Server Error"},
			want: "server error (status 500): 500 Internal Server Error",
		},
		{
			name: "with cause",
			err:  &HTTPError{StatusCode: 429, Class: ErrorClassRateLimit, Message: "slow down", Err: inner},
			want: "rate_limit error (status 429): slow down: body read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(tests[1].err, inner) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
