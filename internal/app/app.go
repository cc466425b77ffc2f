package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/florianilch/stackprefix/internal/evernote"
	"github.com/florianilch/stackprefix/internal/oauthflow"
	"github.com/florianilch/stackprefix/internal/renamer"
	"github.com/florianilch/stackprefix/internal/session"
)

// sessionOpener yields an authenticated service.
type sessionOpener interface {
	Open(ctx context.Context) (evernote.Service, error)
}

// App wires authentication and the notebook renamer into a single run.
type App struct {
	cfg    *Config
	opener sessionOpener
}

// New creates a new App instance. No network I/O happens before Run.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := cfg.Auth.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	flow, err := oauthflow.New(oauthflow.Config{
		ConsumerKey:     cfg.Auth.ConsumerKey,
		ConsumerSecret:  cfg.Auth.ConsumerSecret,
		ServiceHost:     cfg.Service.Host,
		CallbackHost:    cfg.Callback.Host,
		CallbackPort:    cfg.Callback.Port,
		CallbackPath:    cfg.Callback.Path,
		CallbackTimeout: cfg.Callback.Timeout,
		DisableBrowser:  cfg.Browser.Disabled,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth flow: %w", err)
	}

	host := cfg.Service.Host
	connect := func(token string) evernote.Service {
		return evernote.NewClient(token, evernote.WithHost(host))
	}

	opener, err := session.NewOpener(store, connect, flow,
		session.WithMaxRateLimitWaits(cfg.RateLimit.MaxWaits))
	if err != nil {
		return nil, fmt.Errorf("failed to create session opener: %w", err)
	}

	return &App{
		cfg:    cfg,
		opener: opener,
	}, nil
}

// Run authenticates and prefixes every stacked notebook with its stack name.
func (a *App) Run(ctx context.Context) error {
	if a.opener == nil {
		return errors.New("app not initialized")
	}

	slog.InfoContext(ctx, "opening session", "host", a.cfg.Service.Host)
	service, err := a.opener.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	r, err := renamer.New(service)
	if err != nil {
		return fmt.Errorf("failed to create renamer: %w", err)
	}

	summary, err := r.Run(ctx)
	slog.InfoContext(ctx, "notebooks processed",
		"total", summary.Total(),
		"renamed", summary.Renamed,
		"already_prefixed", summary.AlreadyPrefixed,
		"not_stacked", summary.NotStacked,
	)
	if err != nil {
		return fmt.Errorf("failed to rename notebooks: %w", err)
	}

	return nil
}
