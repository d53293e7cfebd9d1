// Package storage provides the persistence interfaces for the ORCID Link
// service: linking sessions keyed by session id and link records keyed by
// username.
//
// The storage layer exclusively owns persisted bytes; callers receive value
// objects reconstructed per call and never share mutable instances across
// requests.
package storage

import (
	"context"

	"github.com/kbase/orcidlink/pkg/orcid"
)

//go:generate mockgen -destination=mocks/mock_stores.go -package=mocks -source=interfaces.go SessionStore,LinkStore

// Session lifecycle states as stored. The linking package reconstructs its
// staged session types from the state discriminant.
const (
	SessionStateInitial   = "initial"
	SessionStateStarted   = "started"
	SessionStateCompleted = "completed"
)

// SessionRecord is the persisted form of a linking session. ReturnLink and
// OrcidAuth are populated progressively as the session advances; State is
// authoritative for which stage the record is in. Timestamps are epoch
// milliseconds.
type SessionRecord struct {
	SessionID  string          `json:"session_id"`
	Username   string          `json:"username"`
	CreatedAt  int64           `json:"created_at"`
	ExpiresAt  int64           `json:"expires_at"`
	State      string          `json:"state"`
	ReturnLink *string         `json:"return_link,omitempty"`
	SkipPrompt bool            `json:"skip_prompt"`
	OrcidAuth  *orcid.TokenSet `json:"orcid_auth,omitempty"`
}

// LinkRecord is the durable credential link. At most one exists per
// username. RetiresAt governs proactive refresh; ExpiresAt is informational.
// Timestamps are epoch milliseconds.
type LinkRecord struct {
	Username  string         `json:"username"`
	OrcidAuth orcid.TokenSet `json:"orcid_auth"`
	CreatedAt int64          `json:"created_at"`
	ExpiresAt int64          `json:"expires_at"`
	RetiresAt int64          `json:"retires_at"`
}

// SessionStore defines the persistence operations for linking sessions.
type SessionStore interface {
	// Get retrieves a session by id.
	Get(ctx context.Context, sessionID string) (*SessionRecord, error)
	// Insert stores a new session.
	Insert(ctx context.Context, rec *SessionRecord) error
	// Update replaces an existing session.
	Update(ctx context.Context, rec *SessionRecord) error
	// Delete removes a session by id.
	Delete(ctx context.Context, sessionID string) error
	// DeleteCompleted atomically removes a session only if it is in the
	// completed state, reporting whether a row was deleted. This is the
	// commit point that serializes concurrent finish calls.
	DeleteCompleted(ctx context.Context, sessionID string) (bool, error)
	// Reset removes all sessions. Test support only.
	Reset(ctx context.Context) error
}

// LinkStore defines the persistence operations for link records.
type LinkStore interface {
	// Get retrieves the link record for a username.
	Get(ctx context.Context, username string) (*LinkRecord, error)
	// Insert stores a new link record.
	Insert(ctx context.Context, rec *LinkRecord) error
	// Update replaces an existing link record.
	Update(ctx context.Context, rec *LinkRecord) error
	// Delete removes the link record for a username.
	Delete(ctx context.Context, username string) error
	// Reset removes all link records. Test support only.
	Reset(ctx context.Context) error
}
