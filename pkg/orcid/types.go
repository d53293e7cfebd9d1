// Package orcid provides the client for the ORCID OAuth API: authorization
// code exchange, token refresh, and token revocation.
package orcid

import (
	"context"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=types.go ExchangeClient

// ExchangeClient is the interface consumed by the linking-session and link
// components for the three external OAuth operations.
type ExchangeClient interface {
	// ExchangeCode swaps an authorization code for a token set.
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)
	// Refresh obtains a fresh token set using a stored refresh token.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)
	// Revoke invalidates an access token at the provider. Callers treat
	// failure as advisory cleanup, not a precondition.
	Revoke(ctx context.Context, accessToken string) error
	// AuthCodeURL returns the provider consent URL for a linking session.
	AuthCodeURL(sessionID string, skipPrompt bool) string
}

// TokenSet is the ORCID OAuth token grant stored with a link. ExpiresIn is
// seconds from issuance, per RFC 6749.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Name         string `json:"name"`
	Orcid        string `json:"orcid"`
	IDToken      string `json:"id_token,omitempty"`
}

// redactedPlaceholder is used to redact sensitive values in string representations
const redactedPlaceholder = "[REDACTED]"

// String implements fmt.Stringer for TokenSet, redacting sensitive tokens.
func (t TokenSet) String() string {
	accessToken := redactedPlaceholder
	if t.AccessToken == "" {
		accessToken = "<empty>"
	}
	refreshToken := redactedPlaceholder
	if t.RefreshToken == "" {
		refreshToken = "<empty>"
	}
	return fmt.Sprintf("TokenSet{Orcid: %s, Scope: %s, ExpiresIn: %d, AccessToken: %s, RefreshToken: %s}",
		t.Orcid, t.Scope, t.ExpiresIn, accessToken, refreshToken)
}
