package app

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/florianilch/stackprefix/internal/evernote"
	"github.com/florianilch/stackprefix/internal/tokenstore"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{
		Auth: AuthConfig{
			ConsumerKey:    "key",
			ConsumerSecret: "secret",
			File:           filepath.Join(t.TempDir(), "token.json"),
		},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	return cfg
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.LogFormat != LogFormatAuto {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, LogFormatAuto)
	}
	if cfg.LogExporter != LogExporterNone {
		t.Errorf("LogExporter = %q, want %q", cfg.LogExporter, LogExporterNone)
	}
	if cfg.Auth.Storage != TokenStorageTypeFile {
		t.Errorf("Auth.Storage = %q, want %q", cfg.Auth.Storage, TokenStorageTypeFile)
	}
	if !strings.HasSuffix(cfg.Auth.File, filepath.Join("stackprefix", "token.json")) {
		t.Errorf("Auth.File = %q, want suffix stackprefix/token.json", cfg.Auth.File)
	}
	if cfg.Callback.Host != "localhost" || cfg.Callback.Port != 5001 || cfg.Callback.Path != "/callback" {
		t.Errorf("Callback = %+v, want localhost:5001/callback", cfg.Callback)
	}
	if cfg.Callback.Timeout != 0 {
		t.Errorf("Callback.Timeout = %v, want 0", cfg.Callback.Timeout)
	}
	if cfg.Service.Host != evernote.DefaultHost {
		t.Errorf("Service.Host = %q, want %q", cfg.Service.Host, evernote.DefaultHost)
	}
	if cfg.RateLimit.MaxWaits != 3 {
		t.Errorf("RateLimit.MaxWaits = %d, want 3", cfg.RateLimit.MaxWaits)
	}
}

func TestConfig_ApplyDefaultsSandbox(t *testing.T) {
	cfg := &Config{Service: ServiceConfig{Sandbox: true}, Auth: AuthConfig{File: "token.json"}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	if cfg.Service.Host != evernote.SandboxHost {
		t.Errorf("Service.Host = %q, want %q", cfg.Service.Host, evernote.SandboxHost)
	}

	explicit := &Config{Service: ServiceConfig{Sandbox: true, Host: "evernote.example"}, Auth: AuthConfig{File: "token.json"}}
	if err := explicit.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	if explicit.Service.Host != "evernote.example" {
		t.Errorf("Service.Host = %q, explicit host must win", explicit.Service.Host)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing consumer key",
			mutate:  func(c *Config) { c.Auth.ConsumerKey = "" },
			wantErr: "CONSUMER_KEY or CONSUMER_SECRET not set",
		},
		{
			name:    "missing consumer secret",
			mutate:  func(c *Config) { c.Auth.ConsumerSecret = "" },
			wantErr: "CONSUMER_KEY or CONSUMER_SECRET not set",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.LogFormat = "yaml" },
			wantErr: "LogFormat",
		},
		{
			name:    "unknown exporter",
			mutate:  func(c *Config) { c.LogExporter = "kafka" },
			wantErr: "LogExporter",
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.Auth.Storage = "env" },
			wantErr: "Storage",
		},
		{
			name:    "relative callback path",
			mutate:  func(c *Config) { c.Callback.Path = "callback" },
			wantErr: "Path",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Callback.Timeout = -time.Second },
			wantErr: "Timeout",
		},
		{
			name:    "negative rate limit waits",
			mutate:  func(c *Config) { c.RateLimit.MaxWaits = -1 },
			wantErr: "MaxWaits",
		},
		{
			name:    "file storage without path",
			mutate:  func(c *Config) { c.Auth.File = "" },
			wantErr: "file path required",
		},
		{
			name: "keyring storage without user",
			mutate: func(c *Config) {
				c.Auth.Storage = TokenStorageTypeKeyring
				c.Auth.KeyringUser = ""
			},
			wantErr: "keyring_user required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAuthConfig_NewTokenStore(t *testing.T) {
	keyring.MockInit()

	fileCfg := AuthConfig{Storage: TokenStorageTypeFile, File: filepath.Join(t.TempDir(), "token.json")}
	store, err := fileCfg.NewTokenStore()
	if err != nil {
		t.Fatalf("NewTokenStore(file) error = %v", err)
	}
	if _, ok := store.(*tokenstore.FileStore); !ok {
		t.Errorf("NewTokenStore(file) = %T, want *tokenstore.FileStore", store)
	}

	keyringCfg := AuthConfig{Storage: TokenStorageTypeKeyring, KeyringUser: "alice"}
	store, err = keyringCfg.NewTokenStore()
	if err != nil {
		t.Fatalf("NewTokenStore(keyring) error = %v", err)
	}
	if _, ok := store.(*tokenstore.KeyringStore); !ok {
		t.Errorf("NewTokenStore(keyring) = %T, want *tokenstore.KeyringStore", store)
	}

	if _, err := (&AuthConfig{Storage: "env"}).NewTokenStore(); err == nil {
		t.Error("NewTokenStore(env) succeeded, want error")
	}
}
