// Package kbauth wraps the KBase auth service. It turns raw bearer
// credentials into verified identity and role information, caching results
// and normalizing upstream failures into the service error taxonomy.
package kbauth

import "context"

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks -source=types.go Verifier

// Verifier is the interface consumed by the API layer for credential checks.
type Verifier interface {
	// GetTokenInfo verifies a bearer credential and returns information
	// about the token, including the owning username.
	GetTokenInfo(ctx context.Context, token string) (*TokenInfo, error)
	// GetMe returns the account record for the user owning the credential,
	// including roles, for privileged-operation checks.
	GetMe(ctx context.Context, token string) (*AccountInfo, error)
}

// TokenInfo is the result of verifying a bearer credential against the auth
// service. Timestamps are epoch milliseconds; CacheFor is a cache hint in
// milliseconds.
type TokenInfo struct {
	Type     string         `json:"type"`
	ID       string         `json:"id"`
	Expires  int64          `json:"expires"`
	Created  int64          `json:"created"`
	Name     *string        `json:"name"`
	User     string         `json:"user"`
	CacheFor int64          `json:"cachefor"`
	Custom   map[string]any `json:"custom,omitempty"`
}

// Role is a built-in auth service role.
type Role struct {
	ID          string `json:"id"`
	Description string `json:"desc"`
}

// Identity is a linked remote identity in the auth service account record.
type Identity struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Username string `json:"provusername"`
}

// PolicyAgreement records acceptance of a use policy.
type PolicyAgreement struct {
	ID       string `json:"id"`
	AgreedOn int64  `json:"agreedon"`
}

// AccountInfo is the account record returned by the auth service /me
// endpoint. CustomRoles carries the role names used to authorize manager
// operations.
type AccountInfo struct {
	User        string            `json:"user"`
	Display     string            `json:"display"`
	Email       string            `json:"email"`
	Created     int64             `json:"created"`
	LastLogin   int64             `json:"lastlogin"`
	Roles       []Role            `json:"roles"`
	CustomRoles []string          `json:"customroles"`
	Idents      []Identity        `json:"idents"`
	PolicyIDs   []PolicyAgreement `json:"policyids"`
}

// HasCustomRole reports whether the account carries the named custom role.
func (a *AccountInfo) HasCustomRole(role string) bool {
	for _, r := range a.CustomRoles {
		if r == role {
			return true
		}
	}
	return false
}
