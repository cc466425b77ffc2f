package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/stackprefix/internal/app"
)

// envPrefix is stripped from environment variables during config loading (e.g., STACKPREFIX_CALLBACK__PORT → callback.port)
const envPrefix = "STACKPREFIX_"

// consumerEnvPrefix matches the bare CONSUMER_KEY and CONSUMER_SECRET variables.
const consumerEnvPrefix = "CONSUMER_"

const defaultEnvFile = ".env"

// flagKeys maps flags whose names do not follow the --section--key convention.
var flagKeys = map[string]string{
	"no-browser": "browser.disabled",
}

// loadConfig loads application configuration from various sources with precedence:
// config file → environment variables → CLI flags → defaults
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	k := koanf.New(".")

	// 1. Load from config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// 2. Load from environment variables, bare consumer credentials first
	consumerProvider := env.Provider(".", env.Opt{
		Prefix: consumerEnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			switch key {
			case "CONSUMER_KEY":
				return "auth.consumer_key", value
			case "CONSUMER_SECRET":
				return "auth.consumer_secret", value
			default:
				// Empty keys are dropped by the provider
				return "", nil
			}
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(consumerProvider, nil); err != nil {
		return nil, fmt.Errorf("loading consumer credentials: %w", err)
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			stripped := strings.TrimPrefix(key, envPrefix)
			nested := strings.ToLower(strings.ReplaceAll(stripped, "__", "."))
			return nested, value
		},
		EnvironFunc: environFunc,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	// 3. Load from CLI flags if provided
	if cmd != nil {
		flagValues := extractAndTransformFlags(cmd)
		if err := k.Load(confmap.Provider(flagValues, "."), nil); err != nil {
			return nil, fmt.Errorf("loading CLI flags: %w", err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// withDotenv returns an environ func that serves the variables of a dotenv
// file underneath environFunc's own. A missing file is not an error.
func withDotenv(path string, environFunc func() []string) (func() []string, error) {
	if path == "" {
		return environFunc, nil
	}

	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return environFunc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return func() []string {
		environ := environFunc()
		set := make(map[string]struct{}, len(environ))
		for _, kv := range environ {
			key, _, _ := strings.Cut(kv, "=")
			set[key] = struct{}{}
		}

		merged := make([]string, 0, len(values)+len(environ))
		for key, value := range values {
			if _, ok := set[key]; !ok {
				merged = append(merged, key+"="+value)
			}
		}
		return append(merged, environ...)
	}, nil
}

// extractAndTransformFlags transforms CLI flag names to match config structure.
// Examples: --callback--port → callback.port, --log-level → log_level, --no-browser → browser.disabled
func extractAndTransformFlags(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		// Skip unset flags to preserve precedence from earlier config sources
		if !cmd.IsSet(name) {
			continue
		}
		if name == "config" || name == "env-file" {
			continue
		}

		if value := cmd.Value(name); value != nil {
			key, ok := flagKeys[name]
			if !ok {
				key = strings.ReplaceAll(name, "--", ".")
				key = strings.ReplaceAll(key, "-", "_")
			}
			values[key] = value
		}
	}

	return values
}
