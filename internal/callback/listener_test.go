package callback

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startListener(t *testing.T) *Listener {
	t.Helper()

	l := New(DefaultPath)
	if err := l.Start(context.Background(), "127.0.0.1:0"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Shutdown(context.Background()) })
	return l
}

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()

	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s error = %v", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body error = %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestListener_CapturesVerifier(t *testing.T) {
	l := startListener(t)

	status, body := get(t, l.URL("127.0.0.1")+"?oauth_token=temp&oauth_verifier=v3rifier")
	if status != http.StatusOK {
		t.Errorf("status = %d, want %d", status, http.StatusOK)
	}
	if body != closeTabPage {
		t.Errorf("body = %q, want %q", body, closeTabPage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	verifier, err := l.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if verifier != "v3rifier" {
		t.Errorf("Wait() = %q, want %q", verifier, "v3rifier")
	}
}

func TestListener_MissingVerifierFails(t *testing.T) {
	l := startListener(t)

	status, _ := get(t, l.URL("127.0.0.1")+"?oauth_token=temp")
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := l.Wait(ctx); !errors.Is(err, ErrMissingVerifier) {
		t.Errorf("Wait() error = %v, want %v", err, ErrMissingVerifier)
	}
}

func TestListener_SecondCallbackRejected(t *testing.T) {
	l := New(DefaultPath)

	first := httptest.NewRecorder()
	l.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/callback?oauth_verifier=first", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first callback status = %d, want %d", first.Code, http.StatusOK)
	}

	second := httptest.NewRecorder()
	l.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/callback?oauth_verifier=second", nil))
	if second.Code != http.StatusGone {
		t.Errorf("second callback status = %d, want %d", second.Code, http.StatusGone)
	}

	for range 2 {
		verifier, err := l.Wait(context.Background())
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if verifier != "first" {
			t.Errorf("Wait() = %q, want %q", verifier, "first")
		}
	}
}

func TestListener_FailureIsFinal(t *testing.T) {
	l := New(DefaultPath)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback", nil))

	rec = httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?oauth_verifier=late", nil))
	if rec.Code != http.StatusGone {
		t.Errorf("status after failed callback = %d, want %d", rec.Code, http.StatusGone)
	}

	if _, err := l.Wait(context.Background()); !errors.Is(err, ErrMissingVerifier) {
		t.Errorf("Wait() error = %v, want %v", err, ErrMissingVerifier)
	}
}

func TestListener_OtherPathsIgnored(t *testing.T) {
	l := New(DefaultPath)

	rec := httptest.NewRecorder()
	l.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestListener_PortInUse(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer func() { _ = occupied.Close() }()

	l := New(DefaultPath)
	err = l.Start(context.Background(), occupied.Addr().String())
	if err == nil {
		_ = l.Shutdown(context.Background())
		t.Fatal("Start() error = nil, want bind error")
	}
	if !strings.Contains(err.Error(), "failed to listen") {
		t.Errorf("Start() error = %v, want listen failure", err)
	}
}

func TestListener_ShutdownResolvesWait(t *testing.T) {
	l := startListener(t)

	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := l.Wait(ctx); !errors.Is(err, ErrServerStopped) {
		t.Errorf("Wait() error = %v, want %v", err, ErrServerStopped)
	}
}

func TestListener_URL(t *testing.T) {
	l := startListener(t)

	got := l.URL("localhost")
	if !strings.HasPrefix(got, "http://localhost:") || !strings.HasSuffix(got, "/callback") {
		t.Errorf("URL() = %q, want http://localhost:<port>/callback", got)
	}
	if l.Port() == 0 {
		t.Error("Port() = 0 after Start, want bound port")
	}
}
