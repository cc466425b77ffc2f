// Package session opens an authenticated Evernote session, reusing the stored
// access token when it still validates and running the OAuth flow otherwise.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/florianilch/stackprefix/internal/errors"
	"github.com/florianilch/stackprefix/internal/evernote"
	"github.com/florianilch/stackprefix/internal/tokenstore"
)

// DefaultMaxRateLimitWaits bounds consecutive rate-limit sleeps within one Open.
const DefaultMaxRateLimitWaits = 3

// Authenticator obtains and persists a fresh access token.
type Authenticator interface {
	Run(ctx context.Context) (string, error)
}

// Connector builds a service handle for an access token without performing I/O.
type Connector func(token string) evernote.Service

// Option configures an Opener.
type Option func(*Opener)

// WithSleep replaces the rate-limit wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Opener) {
		o.sleep = sleep
	}
}

// WithMaxRateLimitWaits sets how many consecutive rate-limit waits are tolerated.
func WithMaxRateLimitWaits(n int) Option {
	return func(o *Opener) {
		o.maxRateLimitWaits = n
	}
}

// Opener produces a validated evernote.Service.
type Opener struct {
	store             tokenstore.TokenStore
	connect           Connector
	auth              Authenticator
	sleep             func(ctx context.Context, d time.Duration) error
	maxRateLimitWaits int
}

// NewOpener creates an Opener.
func NewOpener(store tokenstore.TokenStore, connect Connector, auth Authenticator, opts ...Option) (*Opener, error) {
	if store == nil {
		return nil, errors.New("missing token store")
	}
	if connect == nil {
		return nil, errors.New("missing connector")
	}
	if auth == nil {
		return nil, errors.New("missing authenticator")
	}

	o := &Opener{
		store:             store,
		connect:           connect,
		auth:              auth,
		sleep:             sleep,
		maxRateLimitWaits: DefaultMaxRateLimitWaits,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Open returns a service whose stored token passed validation.
//
// A rate-limited validation waits exactly the duration the service asked for
// and validates again without re-authenticating. A missing or rejected token
// triggers the OAuth flow once; if validation still fails afterwards the
// error is returned.
func (o *Opener) Open(ctx context.Context) (evernote.Service, error) {
	authenticated := false
	waits := 0

	for {
		// An unreadable token document is fatal rather than a reason to re-authenticate
		token, err := o.store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading stored token: %w", err)
		}

		service, err := o.validate(ctx, token)
		if err == nil {
			return service, nil
		}

		if rl, ok := apperrors.IsRateLimited(err); ok {
			if waits >= o.maxRateLimitWaits {
				return nil, fmt.Errorf("giving up after %d rate limit waits: %w", waits, err)
			}
			waits++
			if err := o.pauseUntilRateLimitReset(ctx, rl.Duration); err != nil {
				return nil, err
			}
			continue
		}
		waits = 0

		if authenticated {
			return nil, &apperrors.ValidationFailedError{Err: err}
		}

		if errors.Is(err, apperrors.ErrNoStoredToken) {
			slog.InfoContext(ctx, "no token found in the token store")
		} else {
			slog.InfoContext(ctx, "stored access token rejected", "error", err)
		}

		slog.DebugContext(ctx, "retrieving new token")
		if _, err := o.auth.Run(ctx); err != nil {
			return nil, fmt.Errorf("oauth flow: %w", err)
		}
		authenticated = true
	}
}

// validate checks token with a sync state and a user lookup. Errors are
// classified into the internal/errors set.
func (o *Opener) validate(ctx context.Context, token string) (evernote.Service, error) {
	if token == "" {
		return nil, apperrors.ErrNoStoredToken
	}
	slog.DebugContext(ctx, "retrieved stored token")

	service := o.connect(token)

	// early and cheap check
	if _, err := service.GetSyncState(ctx); err != nil {
		return nil, classify(ctx, err)
	}

	user, err := service.GetUser(ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}
	slog.InfoContext(ctx, "connected", "username", user.Username)

	return service, nil
}

// classify maps remote exceptions onto the closed error set and logs them.
func classify(ctx context.Context, err error) error {
	var sysErr *evernote.SystemException
	if errors.As(err, &sysErr) && sysErr.ErrorCode == evernote.ErrorCodeRateLimitReached {
		return &apperrors.RateLimitedError{Duration: time.Duration(sysErr.RateLimitDuration) * time.Second}
	}

	var userErr *evernote.UserException
	switch {
	case errors.As(err, &userErr):
		slog.ErrorContext(ctx, "token validation failed",
			"error_code", userErr.ErrorCode.String(), "parameter", userErr.Parameter)
	case errors.As(err, &sysErr):
		slog.ErrorContext(ctx, "token validation failed",
			"error_code", sysErr.ErrorCode.String(), "message", sysErr.Message)
	default:
		slog.ErrorContext(ctx, "token validation failed", "error", err)
	}
	return err
}

func (o *Opener) pauseUntilRateLimitReset(ctx context.Context, d time.Duration) error {
	now := time.Now()
	slog.InfoContext(ctx, "rate limit reached, pausing",
		"duration", d,
		"from", now.Format(time.RFC3339),
		"until", now.Add(d).Format(time.RFC3339),
	)
	return o.sleep(ctx, d)
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
