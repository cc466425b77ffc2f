package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPath is the path the provider redirects to after user consent.
const DefaultPath = "/callback"

// closeTabPage is served after a successful callback so the browser tab closes itself.
const closeTabPage = "<script>window.close();</script>"

var (
	// ErrMissingVerifier is returned when the callback request carries no oauth_verifier.
	ErrMissingVerifier = errors.New("callback request missing oauth_verifier")

	// ErrServerStopped is returned when the server exits before a callback arrived.
	ErrServerStopped = errors.New("callback server stopped before receiving a callback")
)

// result is the single outcome of a listener.
type result struct {
	verifier string
	err      error
}

// Listener is a one-shot local HTTP server that captures the OAuth verifier
// from the provider's redirect.
//
// Only the first request on the callback path is handled. Its outcome, a
// verifier or ErrMissingVerifier, is final; later requests are answered with
// 410 Gone and never change it.
type Listener struct {
	path   string
	mux    *http.ServeMux
	server *http.Server
	addr   *net.TCPAddr

	handled atomic.Bool
	once    sync.Once
	done    chan result

	shutdownOnce sync.Once
	shutdownErr  error
}

// Compile-time check that Listener implements http.Handler
var _ http.Handler = (*Listener)(nil)

// New creates a Listener serving the given callback path.
func New(path string) *Listener {
	if path == "" {
		path = DefaultPath
	}

	l := &Listener{
		path: path,
		done: make(chan result, 1),
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+path, withRequestLog(slog.Default(), http.HandlerFunc(l.handleCallback)))
	l.mux = mux

	return l
}

// ServeHTTP implements http.Handler interface
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mux.ServeHTTP(w, r)
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	if !l.handled.CompareAndSwap(false, true) {
		http.Error(w, "callback already received", http.StatusGone)
		return
	}

	// The server is torn down by the waiter right after this response
	w.Header().Set("Connection", "close")

	verifier := r.URL.Query().Get("oauth_verifier")
	if verifier == "" {
		// Evernote redirects without a verifier when the user declines access
		http.Error(w, "authorization was not granted", http.StatusBadRequest)
		l.resolve(result{err: ErrMissingVerifier})
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(closeTabPage))

	l.resolve(result{verifier: verifier})
}

// resolve records the outcome. Only the first call has any effect.
func (l *Listener) resolve(res result) {
	l.once.Do(func() {
		l.done <- res
	})
}

// Start binds the listener and serves in the background.
//
// Bind errors (port in use, permission denied) are returned immediately.
// A server that stops before any callback arrived resolves Wait with an error.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (l *Listener) Start(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	l.addr, _ = listener.Addr().(*net.TCPAddr)

	l.server = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		err := l.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.resolve(result{err: fmt.Errorf("callback server: %w", err)})
			return
		}
		l.resolve(result{err: ErrServerStopped})
	}()

	return nil
}

// Port returns the bound TCP port, or 0 before Start.
func (l *Listener) Port() int {
	if l.addr == nil {
		return 0
	}
	return l.addr.Port
}

// URL returns the callback URL the provider should redirect to.
func (l *Listener) URL(host string) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(l.Port())) + l.path
}

// Wait blocks until the callback arrives, the server fails, or ctx is done.
// There is no built-in timeout; bound ctx to limit the wait.
func (l *Listener) Wait(ctx context.Context) (string, error) {
	select {
	case res := <-l.done:
		// Keep the outcome observable for any later Wait
		l.done <- res
		return res.verifier, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown performs graceful shutdown of the HTTP server. Safe to call more than once.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.server == nil {
		return nil
	}

	l.shutdownOnce.Do(func() {
		if err := l.server.Shutdown(ctx); err != nil {
			// Graceful shutdown failed - force close
			_ = l.server.Close()
			l.shutdownErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	})

	return l.shutdownErr
}
