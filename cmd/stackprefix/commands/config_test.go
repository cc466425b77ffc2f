package commands

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/stackprefix/internal/app"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadConfig_BareConsumerCredentials(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")

	cfg, err := loadConfig("", nil, environ(
		"CONSUMER_KEY=key",
		"CONSUMER_SECRET=secret",
		"CONSUMER_UNRELATED=ignored",
		"STACKPREFIX_AUTH__FILE="+tokenFile,
	))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Auth.ConsumerKey != "key" || cfg.Auth.ConsumerSecret != "secret" {
		t.Errorf("consumer credentials = %q/%q, want key/secret", cfg.Auth.ConsumerKey, cfg.Auth.ConsumerSecret)
	}
	if cfg.Auth.File != tokenFile {
		t.Errorf("Auth.File = %q, want %q", cfg.Auth.File, tokenFile)
	}
	if cfg.Callback.Port != app.DefaultConfigCallbackPort {
		t.Errorf("Callback.Port = %d, want default", cfg.Callback.Port)
	}
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	_, err := loadConfig("", nil, environ("STACKPREFIX_AUTH__FILE=/tmp/token.json"))
	if err == nil {
		t.Fatal("loadConfig() succeeded without consumer credentials")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	configPath := writeFile(t, "config.toml", `
log_level = "debug"

[auth]
consumer_key = "file-key"
consumer_secret = "file-secret"
file = "`+tokenFile+`"

[callback]
port = 6001
timeout = "2m"

[service]
sandbox = true
`)

	cfg, err := loadConfig(configPath, nil, environ(
		"CONSUMER_KEY=bare-key",
		"STACKPREFIX_AUTH__CONSUMER_SECRET=env-secret",
		"STACKPREFIX_CALLBACK__PORT=7001",
		"STACKPREFIX_RATE_LIMIT__MAX_WAITS=5",
	))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Auth.ConsumerKey != "bare-key" {
		t.Errorf("ConsumerKey = %q, environment must override file", cfg.Auth.ConsumerKey)
	}
	if cfg.Auth.ConsumerSecret != "env-secret" {
		t.Errorf("ConsumerSecret = %q, want env-secret", cfg.Auth.ConsumerSecret)
	}
	if cfg.Callback.Port != 7001 {
		t.Errorf("Callback.Port = %d, want 7001", cfg.Callback.Port)
	}
	if cfg.Callback.Timeout != 2*time.Minute {
		t.Errorf("Callback.Timeout = %v, want 2m", cfg.Callback.Timeout)
	}
	if !cfg.Service.Sandbox || cfg.Service.Host != "sandbox.evernote.com" {
		t.Errorf("Service = %+v, want sandbox host", cfg.Service)
	}
	if cfg.RateLimit.MaxWaits != 5 {
		t.Errorf("RateLimit.MaxWaits = %d, want 5", cfg.RateLimit.MaxWaits)
	}
	if cfg.LogLevel.String() != "DEBUG" {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	env := environ(
		"CONSUMER_KEY=key",
		"CONSUMER_SECRET=secret",
		"STACKPREFIX_AUTH__FILE="+tokenFile,
		"STACKPREFIX_CALLBACK__PORT=7001",
	)

	var cfg *app.Config
	cmd := &cli.Command{
		Name: "stackprefix",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.IntFlag{Name: "callback--port", Value: app.DefaultConfigCallbackPort},
			&cli.BoolFlag{Name: "no-browser"},
			&cli.StringFlag{Name: "log-format", Value: "auto"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			var err error
			cfg, err = loadConfig(cmd.String("config"), cmd, env)
			return err
		},
	}

	args := []string{"stackprefix", "--callback--port", "8001", "--no-browser", "--log-format", "json"}
	if err := cmd.Run(context.Background(), args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if cfg.Callback.Port != 8001 {
		t.Errorf("Callback.Port = %d, flag must override environment", cfg.Callback.Port)
	}
	if !cfg.Browser.Disabled {
		t.Error("Browser.Disabled = false, want true from --no-browser")
	}
	if cfg.LogFormat != app.LogFormatJSON {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestWithDotenv(t *testing.T) {
	path := writeFile(t, ".env", "CONSUMER_KEY=dotenv-key\nCONSUMER_SECRET=dotenv-secret\n")

	merged, err := withDotenv(path, environ("CONSUMER_SECRET=real-secret", "HOME=/home/alice"))
	if err != nil {
		t.Fatalf("withDotenv() error = %v", err)
	}

	got := merged()
	slices.Sort(got)
	want := []string{"CONSUMER_KEY=dotenv-key", "CONSUMER_SECRET=real-secret", "HOME=/home/alice"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("environ mismatch (-want +got):\n%s", diff)
	}
}

func TestWithDotenv_MissingFile(t *testing.T) {
	base := environ("A=1")

	merged, err := withDotenv(filepath.Join(t.TempDir(), ".env"), base)
	if err != nil {
		t.Fatalf("withDotenv() error = %v", err)
	}
	if diff := cmp.Diff([]string{"A=1"}, merged()); diff != "" {
		t.Errorf("environ mismatch (-want +got):\n%s", diff)
	}
}
