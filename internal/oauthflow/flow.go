package oauthflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrjones/oauth"
	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/stackprefix/internal/callback"
	apperrors "github.com/florianilch/stackprefix/internal/errors"
	"github.com/florianilch/stackprefix/internal/tokenstore"
)

const (
	requestTokenPath = "/oauth"
	authorizePath    = "/OAuth.action"
	accessTokenPath  = "/oauth"

	shutdownTimeout = 2 * time.Second
)

// TemporaryToken is the request token pair valid for a single exchange.
type TemporaryToken struct {
	Token  string
	Secret string
}

// Config holds the consumer credentials and callback settings of a Flow.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string

	// ServiceHost is the Evernote host, e.g. www.evernote.com.
	ServiceHost string

	CallbackHost string
	CallbackPort uint16
	CallbackPath string

	// CallbackTimeout bounds the wait for the browser redirect; zero waits until ctx is done.
	CallbackTimeout time.Duration

	// DisableBrowser prints the authorize URL instead of opening it.
	DisableBrowser bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithHTTPClient sets the HTTP client used for provider requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Flow) {
		f.httpClient = client
	}
}

// WithBrowser replaces the function used to open the authorize URL.
func WithBrowser(open func(url string) error) Option {
	return func(f *Flow) {
		f.openBrowser = open
	}
}

// WithBaseURL overrides the scheme and host of the provider endpoints.
func WithBaseURL(baseURL string) Option {
	return func(f *Flow) {
		f.baseURL = baseURL
	}
}

// Flow coordinates one OAuth dance per Run.
type Flow struct {
	cfg         Config
	store       tokenstore.TokenStore
	baseURL     string
	httpClient  *http.Client
	openBrowser func(url string) error
}

// New creates a Flow that persists obtained tokens in store.
func New(cfg Config, store tokenstore.TokenStore, opts ...Option) (*Flow, error) {
	if cfg.ConsumerKey == "" || cfg.ConsumerSecret == "" {
		return nil, errors.New("consumer key and secret are required")
	}
	if store == nil {
		return nil, errors.New("missing token store")
	}
	if cfg.CallbackHost == "" {
		cfg.CallbackHost = "localhost"
	}
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = callback.DefaultPath
	}

	f := &Flow{
		cfg:         cfg,
		store:       store,
		baseURL:     "https://" + cfg.ServiceHost,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		openBrowser: browser.OpenURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// maxErrorBody bounds how much of a failed provider response is kept.
const maxErrorBody = 512

// contextClient binds outgoing provider requests to ctx; the oauth package has no context support.
// It also keeps the last failed response, since the oauth package reduces it to a string
// that embeds the signed request headers.
type contextClient struct {
	ctx    context.Context
	client *http.Client

	status int
	body   string
}

func (c *contextClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req.WithContext(c.ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
	c.status = resp.StatusCode
	c.body = strings.TrimSpace(string(body))
	if readErr != nil {
		return nil, fmt.Errorf("reading provider response: %w", readErr)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// providerError classifies a failure of the oauth package into a TransportError.
// Responses are described by status and body only.
func (c *contextClient) providerError(err error) error {
	if c.status == 0 {
		return &apperrors.TransportError{Err: err}
	}
	msg := http.StatusText(c.status)
	if c.body != "" {
		msg = c.body
	}
	return &apperrors.TransportError{StatusCode: c.status, Err: errors.New(msg)}
}

func (f *Flow) consumer(ctx context.Context) (*oauth.Consumer, *contextClient) {
	consumer := oauth.NewConsumer(f.cfg.ConsumerKey, f.cfg.ConsumerSecret, oauth.ServiceProvider{
		RequestTokenUrl:   f.baseURL + requestTokenPath,
		AuthorizeTokenUrl: f.baseURL + authorizePath,
		AccessTokenUrl:    f.baseURL + accessTokenPath,
	})
	client := &contextClient{ctx: ctx, client: f.httpClient}
	consumer.HttpClient = client
	return consumer, client
}

// Run performs the full flow and returns the persisted access token.
//
// The callback listener is bound before the provider is contacted so that a
// busy port fails fast and the redirect cannot arrive before the server.
func (f *Flow) Run(ctx context.Context) (string, error) {
	listener := callback.New(f.cfg.CallbackPath)
	address := net.JoinHostPort(f.cfg.CallbackHost, strconv.Itoa(int(f.cfg.CallbackPort)))
	if err := listener.Start(ctx, address); err != nil {
		return "", fmt.Errorf("starting callback listener: %w", err)
	}
	stopListener := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := listener.Shutdown(shutdownCtx); err != nil {
			slog.WarnContext(ctx, "callback listener shutdown failed", "error", err)
		}
	}
	// Shutdown is idempotent; this covers the early returns
	defer stopListener()
	slog.DebugContext(ctx, "callback listener running", "url", listener.URL(f.cfg.CallbackHost))

	slog.DebugContext(ctx, "requesting temporary token")
	temp, err := f.RequestTemporaryToken(ctx, listener.URL(f.cfg.CallbackHost))
	if err != nil {
		return "", err
	}

	authorizeURL, err := f.AuthorizeURL(temp.Token)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "authorization required", "authorize_url", authorizeURL)

	slog.DebugContext(ctx, "requesting oauth verifier")
	verifier, err := f.AwaitVerifier(ctx, listener, authorizeURL)
	if err != nil {
		return "", err
	}
	stopListener()

	slog.DebugContext(ctx, "requesting access token")
	accessToken, err := f.ExchangeForAccessToken(ctx, temp, verifier)
	if err != nil {
		return "", err
	}

	if err := f.store.Write(ctx, accessToken); err != nil {
		return "", fmt.Errorf("persisting access token: %w", err)
	}
	slog.InfoContext(ctx, "access token stored")

	return accessToken, nil
}

// RequestTemporaryToken obtains temporary credentials bound to callbackURL.
func (f *Flow) RequestTemporaryToken(ctx context.Context, callbackURL string) (TemporaryToken, error) {
	consumer, client := f.consumer(ctx)
	requestToken, _, err := consumer.GetRequestTokenAndUrl(callbackURL)
	if err != nil {
		return TemporaryToken{}, fmt.Errorf("requesting temporary token: %w", client.providerError(err))
	}
	slog.DebugContext(ctx, "temporary token received")

	return TemporaryToken{Token: requestToken.Token, Secret: requestToken.Secret}, nil
}

// AuthorizeURL returns the page where the user grants access to tempToken.
func (f *Flow) AuthorizeURL(tempToken string) (string, error) {
	u, err := url.Parse(f.baseURL + authorizePath)
	if err != nil {
		return "", fmt.Errorf("invalid authorize URL: %w", err)
	}
	q := u.Query()
	q.Set("oauth_token", tempToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// AwaitVerifier opens the browser on authorizeURL and blocks until the
// already running listener captured the verifier or failed.
func (f *Flow) AwaitVerifier(ctx context.Context, listener *callback.Listener, authorizeURL string) (string, error) {
	if f.cfg.CallbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.CallbackTimeout)
		defer cancel()
	}

	var verifier string
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if f.cfg.DisableBrowser {
			slog.InfoContext(gCtx, "open this URL in a browser to continue", "authorize_url", authorizeURL)
			return nil
		}
		slog.DebugContext(gCtx, "opening browser to retrieve oauth_verifier")
		if err := f.openBrowser(authorizeURL); err != nil {
			// Not fatal: the user can still open the URL by hand
			slog.WarnContext(gCtx, "could not open browser, visit the authorize URL manually",
				"authorize_url", authorizeURL, "error", err)
		}
		return nil
	})

	g.Go(func() error {
		v, err := listener.Wait(gCtx)
		if err != nil {
			return err
		}
		verifier = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("awaiting oauth verifier: %w", err)
	}
	return verifier, nil
}

// ExchangeForAccessToken trades the temporary credentials and verifier for an access token.
func (f *Flow) ExchangeForAccessToken(ctx context.Context, temp TemporaryToken, verifier string) (string, error) {
	consumer, client := f.consumer(ctx)
	accessToken, err := consumer.AuthorizeToken(&oauth.RequestToken{
		Token:  temp.Token,
		Secret: temp.Secret,
	}, verifier)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", client.providerError(err))
	}
	if accessToken.Token == "" {
		return "", errors.New("provider returned an empty access token")
	}

	if shard, ok := accessToken.AdditionalData["edam_shard"]; ok {
		slog.DebugContext(ctx, "access token issued", "shard", shard)
	}
	return accessToken.Token, nil
}
