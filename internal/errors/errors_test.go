package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitedError_Error(t *testing.T) {
	err := &RateLimitedError{Duration: 90 * time.Second}

	expected := "rate limit reached, retry after 1m30s"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestIsRateLimited(t *testing.T) {
	wrapped := fmt.Errorf("validating: %w", &RateLimitedError{Duration: time.Second})

	rl, ok := IsRateLimited(wrapped)
	if !ok {
		t.Fatal("IsRateLimited() = false, want true")
	}
	if rl.Duration != time.Second {
		t.Errorf("Duration = %v, want %v", rl.Duration, time.Second)
	}

	if _, ok := IsRateLimited(ErrNoStoredToken); ok {
		t.Error("IsRateLimited(ErrNoStoredToken) = true, want false")
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *TransportError
		expected string
	}{
		{
			name:     "with status",
			err:      &TransportError{StatusCode: 401, Err: cause},
			expected: "oauth provider returned status 401: boom",
		},
		{
			name:     "without response",
			err:      &TransportError{Err: cause},
			expected: "oauth provider request failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("errors.Is(err, cause) = false, want true")
			}
		})
	}
}

func TestValidationFailedError_Unwrap(t *testing.T) {
	err := fmt.Errorf("opening session: %w", &ValidationFailedError{Err: ErrNoStoredToken})

	if !errors.Is(err, ErrNoStoredToken) {
		t.Error("errors.Is(err, ErrNoStoredToken) = false, want true")
	}

	var vf *ValidationFailedError
	if !errors.As(err, &vf) {
		t.Fatal("errors.As(err, *ValidationFailedError) = false, want true")
	}
}
