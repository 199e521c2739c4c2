package commands

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jhagel/anthropic-relay/internal/app"
)

const envPrefix = "RELAY_"

// listValuedKeys are config keys whose environment value is a comma-separated
// list rather than a scalar.
var listValuedKeys = map[string]bool{
	"allowed_keys":              true,
	"backend.auth.oauth.scopes": true,
}

// loadConfig builds the effective configuration in precedence order:
// defaults, then the optional TOML file, then RELAY_* environment variables.
// Nested env keys use a double underscore (RELAY_BACKEND__URL -> backend.url).
func loadConfig(path string, environ func() []string) (*app.Config, error) {
	k := koanf.New(".")

	defaults := confmap.Provider(map[string]any{
		"listen":               "127.0.0.1:4000",
		"log_level":            "info",
		"log_format":           "text",
		"max_request_bytes":    10 << 20,
		"backend.auth.mode":    app.AuthModeAPIKey,
		"backend.auth.storage": app.KeyStorageEnv,
	}, ".")
	if err := k.Load(defaults, nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix:      envPrefix,
		EnvironFunc: environ,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			key = strings.ReplaceAll(key, "__", ".")
			if listValuedKeys[key] {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg app.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
