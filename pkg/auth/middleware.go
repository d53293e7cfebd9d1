package auth

import (
	"net/http"

	"github.com/kbase/orcidlink/pkg/errors"
	"github.com/kbase/orcidlink/pkg/kbauth"
)

// SessionCookieName is the KBase UI session cookie carrying the login token
// on browser-initiated requests.
const SessionCookieName = "kbase_session"

// CredentialFromRequest extracts the bearer credential from a request: the
// authorization header when present, else the KBase session cookie. Returns
// the empty string when neither is present.
func CredentialFromRequest(r *http.Request) string {
	if token := r.Header.Get("Authorization"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate verifies the request credential and returns the caller
// identity. The empty-credential case surfaces as authorization-required
// without an upstream call.
func Authenticate(r *http.Request, verifier kbauth.Verifier) (*Identity, error) {
	token := CredentialFromRequest(r)
	if token == "" {
		return nil, errors.NewAuthorizationRequiredError("no authentication credential supplied", nil)
	}
	info, err := verifier.GetTokenInfo(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return &Identity{Username: info.User, Token: token}, nil
}

// Middleware returns an authentication middleware that verifies the request
// credential and stores the identity in the request context. Requests that
// fail verification are rejected with the taxonomy error encoded by
// onError; handlers behind the middleware can assume an identity is
// present.
func Middleware(verifier kbauth.Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := Authenticate(r, verifier)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// MustIdentity returns the identity stored by Middleware, or an
// authorization-required error if the request somehow bypassed it.
func MustIdentity(r *http.Request) (*Identity, error) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return nil, errors.NewAuthorizationRequiredError("no authenticated identity", nil)
	}
	return identity, nil
}
