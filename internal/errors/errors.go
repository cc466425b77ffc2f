// Package errors defines the closed set of failures produced while obtaining
// an authenticated Evernote session.
//
// Remote exceptions and transport failures are classified into one of:
//   - RateLimitedError: the service asked us to back off for a fixed duration
//   - ErrNoStoredToken: nothing has been persisted yet
//   - TransportError: the OAuth provider answered with a non-success status
//   - ValidationFailedError: a stored token could not be validated
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoStoredToken is returned when the token store holds no access token.
var ErrNoStoredToken = errors.New("no stored access token")

// RateLimitedError signals that the remote service refused the call until
// Duration has elapsed.
type RateLimitedError struct {
	Duration time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit reached, retry after %s", e.Duration)
}

// TransportError is a failed exchange with the OAuth provider.
type TransportError struct {
	// StatusCode is the HTTP status returned by the provider, 0 if the
	// request never got a response.
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("oauth provider request failed: %v", e.Err)
	}
	return fmt.Sprintf("oauth provider returned status %d: %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationFailedError wraps the reason a stored token was rejected.
type ValidationFailedError struct {
	Err error
}

// Error implements the error interface.
func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("access token validation failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationFailedError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a RateLimitedError and returns it.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
