package gdrive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// TestMapError tests error mapping from Google API errors to domain errors
func TestMapError(t *testing.T) {
	a := &Adapter{}

	tests := []struct {
		name      string
		input     error
		want      error // nil means the input is returned unchanged
		transient bool
	}{
		{name: "404 not found", input: &googleapi.Error{Code: 404}, want: domain.ErrNotFound},
		{name: "403 permission denied", input: &googleapi.Error{Code: 403}, want: domain.ErrPermissionDenied},
		{
			name:      "403 rate limit",
			input:     &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}},
			want:      domain.ErrNetworkError,
			transient: true,
		},
		{name: "409 already exists", input: &googleapi.Error{Code: 409}, want: domain.ErrAlreadyExists},
		{name: "429 rate limit", input: &googleapi.Error{Code: 429}, want: domain.ErrNetworkError, transient: true},
		{name: "503 unavailable", input: &googleapi.Error{Code: 503}, want: domain.ErrNetworkError, transient: true},
		{name: "400 passthrough", input: &googleapi.Error{Code: 400, Message: "bad request"}},
		{name: "non-googleapi notFound string", input: errors.New("file notFound in drive"), want: domain.ErrNotFound},
		{name: "generic error", input: errors.New("generic error")},
		{name: "canceled job", input: fmt.Errorf("read: %w", domain.ErrCanceled)},
		{name: "context canceled", input: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.mapError(tt.input)

			if tt.want == nil {
				if got != tt.input {
					t.Errorf("mapError() = %v, want original error %v", got, tt.input)
				}
			} else {
				if !errors.Is(got, tt.want) {
					t.Errorf("mapError() = %v, want %v", got, tt.want)
				}
				// Verify error wrapping preserves original error
				if !errors.Is(got, tt.input) {
					t.Errorf("mapError() lost the original error: %v", got)
				}
			}

			if isTransient(got) != tt.transient {
				t.Errorf("isTransient(%v) = %v, want %v", got, !tt.transient, tt.transient)
			}
		})
	}

	if a.mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
}

// TestMapError_RateLimitMessage tests the rate limit context survives
func TestMapError_RateLimitMessage(t *testing.T) {
	got := (&Adapter{}).mapError(&googleapi.Error{Code: 429})
	if !strings.Contains(got.Error(), "rate limit exceeded") {
		t.Errorf("mapError(429) should mention the rate limit, got %v", got)
	}
}
