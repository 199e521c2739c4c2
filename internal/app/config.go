package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/jhagel/anthropic-relay/internal/tokenstore"
)

// Backend auth modes.
const (
	AuthModeAPIKey = "api_key"
	AuthModeOAuth2 = "oauth2"
)

// Backend key storage backends.
const (
	KeyStorageEnv     = "env"
	KeyStorageFile    = "file"
	KeyStorageKeyring = "keyring"
)

const (
	defaultKeyEnvVar   = "RELAY_BACKEND_API_KEY"
	keyringService     = "anthropic-relay"
	keyringUser        = "backend"
	defaultKeyFileName = "backend.key"
)

// Config is the immutable process configuration. It is constructed once at
// startup, validated, and passed explicitly to the components that need it;
// nothing reads configuration ambiently.
type Config struct {
	// Listen is the inbound bind address.
	Listen string `koanf:"listen" validate:"required,hostname_port"`
	// LogLevel is a slog level name (debug|info|warn|error).
	LogLevel string `koanf:"log_level" validate:"required"`
	// LogFormat selects the stdout handler (text|json).
	LogFormat string `koanf:"log_format" validate:"required,oneof=text json"`
	// MaxRequestBytes caps inbound request bodies.
	MaxRequestBytes int64 `koanf:"max_request_bytes" validate:"gt=0"`
	// AllowedKeys is the inbound API key allow-list.
	AllowedKeys []string `koanf:"allowed_keys" validate:"min=1,dive,required"`
	// Backend describes the upstream chat-completion service.
	Backend BackendConfig `koanf:"backend"`
}

// BackendConfig locates and names the upstream service.
type BackendConfig struct {
	// URL is the backend API root, e.g. "https://api.openai.com/v1".
	URL string `koanf:"url" validate:"required,http_url"`
	// Model is forwarded on every backend request, regardless of the
	// model the caller asked for.
	Model string `koanf:"model" validate:"required"`
	// Auth selects how outbound requests authenticate.
	Auth BackendAuthConfig `koanf:"auth"`
}

// BackendAuthConfig selects the outbound credential source.
type BackendAuthConfig struct {
	// Mode is api_key (static bearer key from a store) or oauth2
	// (client-credentials grant against an identity provider).
	Mode string `koanf:"mode" validate:"required,oneof=api_key oauth2"`
	// Storage picks the key store for api_key mode (env|file|keyring).
	Storage string `koanf:"storage" validate:"omitempty,oneof=env file keyring"`
	// EnvVar overrides the environment variable read by the env store.
	EnvVar string `koanf:"env_var"`
	// KeyFile overrides the path used by the file store.
	KeyFile string `koanf:"key_file"`
	// OAuth configures oauth2 mode.
	OAuth OAuthConfig `koanf:"oauth"`
}

// OAuthConfig is the client-credentials grant configuration.
type OAuthConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	TokenURL     string   `koanf:"token_url"`
	Scopes       []string `koanf:"scopes"`
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.Backend.Auth.Mode {
	case AuthModeAPIKey:
		if c.Backend.Auth.Storage == "" {
			return fmt.Errorf("invalid configuration: backend.auth.storage is required in api_key mode")
		}
	case AuthModeOAuth2:
		oauth := c.Backend.Auth.OAuth
		if oauth.ClientID == "" || oauth.ClientSecret == "" || oauth.TokenURL == "" {
			return fmt.Errorf("invalid configuration: backend.auth.oauth requires client_id, client_secret and token_url")
		}
	}

	return nil
}

// NewKeyStore builds the configured backend key store.
func (a BackendAuthConfig) NewKeyStore() (tokenstore.Store, error) {
	switch a.Storage {
	case KeyStorageEnv:
		envVar := a.EnvVar
		if envVar == "" {
			envVar = defaultKeyEnvVar
		}
		return &tokenstore.EnvStore{Var: envVar}, nil

	case KeyStorageFile:
		path := a.KeyFile
		if path == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("resolving user config dir: %w", err)
			}
			path = filepath.Join(configDir, keyringService, defaultKeyFileName)
		}
		return &tokenstore.FileStore{Path: path}, nil

	case KeyStorageKeyring:
		return &tokenstore.KeyringStore{Service: keyringService, User: keyringUser}, nil

	default:
		return nil, fmt.Errorf("unsupported key storage %q", a.Storage)
	}
}

// NewTransport builds the authenticated outbound transport for the
// configured auth mode.
func (a BackendAuthConfig) NewTransport(ctx context.Context, base http.RoundTripper) (http.RoundTripper, error) {
	switch a.Mode {
	case AuthModeAPIKey:
		store, err := a.NewKeyStore()
		if err != nil {
			return nil, err
		}
		key, err := store.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading backend key: %w", err)
		}
		return tokenstore.NewBearerTransport(key, base), nil

	case AuthModeOAuth2:
		return tokenstore.NewOAuthTransport(ctx, tokenstore.OAuthConfig{
			ClientID:     a.OAuth.ClientID,
			ClientSecret: a.OAuth.ClientSecret,
			TokenURL:     a.OAuth.TokenURL,
			Scopes:       a.OAuth.Scopes,
		}, base), nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", a.Mode)
	}
}
