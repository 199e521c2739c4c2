// Package tokenstore provides storage and outbound-transport wiring for the
// backend credential.
//
// # Stores
//
// A Store holds the backend API key outside the config file. Three
// implementations exist:
//
//   - EnvStore: reads the key from an environment variable. Read-only; the
//     'auth set-key' command refuses it.
//   - FileStore: a 0600 file under the user config directory.
//   - KeyringStore: the OS keyring via zalando/go-keyring.
//
// # Transports
//
// Outbound authentication lives in the http.RoundTripper chain so the
// adapter never sees credentials:
//
//	transport := tokenstore.NewBearerTransport(key, nil)
//
// For backends fronted by an identity provider, an OAuth2 client-credentials
// transport replaces the static key:
//
//	transport := tokenstore.NewOAuthTransport(ctx, oauthCfg, nil)
package tokenstore
