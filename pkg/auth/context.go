// Package auth provides request authentication for the API: it verifies
// bearer credentials against the KBase auth service and makes the resulting
// identity available to handlers via the request context.
package auth

import (
	"context"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	// Username is the KBase username owning the verified credential.
	Username string
	// Token is the raw credential, retained for follow-up calls that need
	// it (e.g. the account lookup backing manager-role checks).
	Token string
}

// IdentityContextKey is the key used to store Identity in the request context.
//
// Using an empty struct as the key prevents collisions with other context
// keys, as each empty struct type is distinct even if they have the same
// name in different packages.
type IdentityContextKey struct{}

// WithIdentity stores an Identity in the context.
// If identity is nil, the original context is returned unchanged.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if identity == nil {
		return ctx
	}
	return context.WithValue(ctx, IdentityContextKey{}, identity)
}

// IdentityFromContext retrieves an Identity from the context.
// Returns the identity and true if present, nil and false otherwise.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityContextKey{}).(*Identity)
	return identity, ok
}
