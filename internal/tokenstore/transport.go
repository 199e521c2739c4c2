package tokenstore

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// BearerTransport injects a static bearer key into outbound requests.
type BearerTransport struct {
	Key  string
	Base http.RoundTripper
}

// RoundTrip clones the request before adding the Authorization header;
// RoundTrippers must not mutate the caller's request.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+t.Key)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(authed)
}

// NewBearerTransport wraps base with static bearer authentication.
func NewBearerTransport(key string, base http.RoundTripper) http.RoundTripper {
	return &BearerTransport{Key: key, Base: base}
}

// OAuthConfig describes a client-credentials grant against the identity
// provider fronting the backend.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// NewOAuthTransport builds a transport that fetches and refreshes access
// tokens via the client-credentials flow. Token acquisition reuses base for
// its own HTTP calls, so proxy/timeout settings apply to both paths.
func NewOAuthTransport(ctx context.Context, cfg OAuthConfig, base http.RoundTripper) http.RoundTripper {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}

	return &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, cc.TokenSource(ctx)),
		Base:   base,
	}
}
