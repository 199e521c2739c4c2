package proxy

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jhagel/anthropic-relay/internal/anthropicadapter"
)

// keyAuthenticator validates inbound bearer keys against a static allow-list.
// Keys are hashed at construction and compared in constant time; plaintext
// keys are not retained.
type keyAuthenticator struct {
	hashes [][32]byte
}

// newKeyAuthenticator builds an authenticator from the operator allow-list.
func newKeyAuthenticator(keys []string) *keyAuthenticator {
	a := &keyAuthenticator{}
	for _, key := range keys {
		a.hashes = append(a.hashes, sha256.Sum256([]byte(key)))
	}
	return a
}

// authorized reports whether the request carries a bearer key on the allow-list.
func (a *keyAuthenticator) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}

	tokenHash := sha256.Sum256([]byte(token))
	for _, hash := range a.hashes {
		if subtle.ConstantTimeCompare(tokenHash[:], hash[:]) == 1 {
			return true
		}
	}
	return false
}

// BearerAuth rejects requests whose Authorization header is missing,
// malformed, or not on the allow-list with a 401 authentication_error.
func BearerAuth(keys []string) func(http.Handler) http.Handler {
	authenticator := newKeyAuthenticator(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authenticator.authorized(r) {
				writeJSONError(r.Context(), w,
					anthropicadapter.NewAuthenticationError("missing or invalid API key"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
