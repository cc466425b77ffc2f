package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/stackprefix/internal/callback"
	"github.com/florianilch/stackprefix/internal/evernote"
	"github.com/florianilch/stackprefix/internal/session"
	"github.com/florianilch/stackprefix/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatAuto LogFormat = "auto"
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExporter selects where log records are exported besides the local handler.
type LogExporter string

const (
	LogExporterNone     LogExporter = "none"
	LogExporterStdout   LogExporter = "stdout"
	LogExporterOTLPHTTP LogExporter = "otlp-http"
	LogExporterOTLPGRPC LogExporter = "otlp-grpc"
)

// TokenStorageType represents the different storage types supported for the access token.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// KeyringService is the keyring service name entries are stored under.
const KeyringService = "stackprefix"

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatAuto
	DefaultConfigLogExporter       = LogExporterNone
	DefaultConfigAuthStorage       = TokenStorageTypeFile
	DefaultConfigCallbackHost      = "localhost"
	DefaultConfigCallbackPort      = 5001
	DefaultConfigCallbackPath      = callback.DefaultPath
	DefaultConfigRateLimitMaxWaits = session.DefaultMaxRateLimitWaits
)

// AuthConfig holds the consumer credentials and where the access token is kept.
type AuthConfig struct {
	ConsumerKey    string `json:"consumer_key" validate:"required"`
	ConsumerSecret string `json:"consumer_secret" validate:"required"`

	// Storage configuration - where the access token is persisted
	Storage TokenStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to token file
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// NewTokenStore creates a TokenStore from the authentication configuration.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Storage {
	case TokenStorageTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenStorageTypeKeyring:
		return tokenstore.NewKeyringStore(KeyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// CallbackConfig holds the local OAuth callback listener configuration.
type CallbackConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
	Path string `json:"path" validate:"startswith=/"`

	// Timeout for the browser redirect; zero waits indefinitely.
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
}

// ServiceConfig selects the Evernote environment.
type ServiceConfig struct {
	Sandbox bool   `json:"sandbox"`
	Host    string `json:"host" validate:"required"`
}

// RateLimitConfig bounds waiting on the service's rate limit.
type RateLimitConfig struct {
	MaxWaits int `json:"max_waits" validate:"gte=1"`
}

// BrowserConfig controls opening the authorize page.
type BrowserConfig struct {
	Disabled bool `json:"disabled"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level      `json:"log_level"`
	LogFormat   LogFormat       `json:"log_format" validate:"oneof=auto text json"`
	LogExporter LogExporter     `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Auth        AuthConfig      `json:"auth"`
	Callback    CallbackConfig  `json:"callback"`
	Service     ServiceConfig   `json:"service"`
	RateLimit   RateLimitConfig `json:"rate_limit"`
	Browser     BrowserConfig   `json:"browser"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Callback.Host == "" {
		c.Callback.Host = DefaultConfigCallbackHost
	}
	if c.Callback.Port == 0 {
		c.Callback.Port = DefaultConfigCallbackPort
	}
	if c.Callback.Path == "" {
		c.Callback.Path = DefaultConfigCallbackPath
	}
	if c.Service.Host == "" {
		c.Service.Host = evernote.DefaultHost
		if c.Service.Sandbox {
			c.Service.Host = evernote.SandboxHost
		}
	}
	if c.RateLimit.MaxWaits == 0 {
		c.RateLimit.MaxWaits = DefaultConfigRateLimitMaxWaits
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "stackprefix", "token.json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if c.Auth.ConsumerKey == "" || c.Auth.ConsumerSecret == "" {
		return errors.New("CONSUMER_KEY or CONSUMER_SECRET not set")
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}
