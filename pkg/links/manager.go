// Package links owns the durable link record: the mapping from a KBase
// username to an ORCID credential set. It handles retirement-driven token
// refresh, deletion with best-effort revocation, and the public projections
// served to owners and non-owners.
package links

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbase/orcidlink/pkg/errors"
	"github.com/kbase/orcidlink/pkg/logger"
	"github.com/kbase/orcidlink/pkg/orcid"
	"github.com/kbase/orcidlink/pkg/storage"
)

// LinkPublic is the public-safe projection of a link served to its owner.
// Access and refresh tokens never appear in any projection.
type LinkPublic struct {
	Username  string `json:"username"`
	Orcid     string `json:"orcid"`
	Name      string `json:"name"`
	Scope     string `json:"scope"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	RetiresAt int64  `json:"retires_at"`
}

// LinkPublicNonOwner is the minimal projection served to users other than
// the link's owner.
type LinkPublicNonOwner struct {
	Username string `json:"username"`
	Orcid    string `json:"orcid"`
	Name     string `json:"name"`
}

// Manager owns link record lifecycle after creation. Creation itself is the
// linking package's job; everything after the session is finished lands
// here.
type Manager struct {
	links         storage.LinkStore
	orcid         orcid.ExchangeClient
	retirementAge time.Duration
	now           func() time.Time
}

// NewManager creates a link record manager. retirementAge sets the
// retires_at horizon applied after each refresh.
func NewManager(links storage.LinkStore, exchangeClient orcid.ExchangeClient, retirementAge time.Duration) *Manager {
	return &Manager{
		links:         links,
		orcid:         exchangeClient,
		retirementAge: retirementAge,
		now:           time.Now,
	}
}

// WithClock replaces the manager clock. Test support.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// GetForUser returns the link record for a username, refreshing the stored
// token set first if it has passed its retirement deadline. Refresh happens
// on read, not in a background job, so a record read after retires_at is
// always served with fresh tokens.
func (m *Manager) GetForUser(ctx context.Context, username string) (*storage.LinkRecord, error) {
	rec, err := m.links.Get(ctx, username)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("user has no ORCID link")
		}
		return nil, errors.NewInternalError("failed to fetch link record", err)
	}

	now := m.now().UnixMilli()
	if rec.RetiresAt >= now {
		return rec, nil
	}
	return m.refresh(ctx, rec)
}

// refresh swaps the stored refresh token for a new token set and re-persists
// the record with recomputed lifetimes.
func (m *Manager) refresh(ctx context.Context, rec *storage.LinkRecord) (*storage.LinkRecord, error) {
	tokens, err := m.orcid.Refresh(ctx, rec.OrcidAuth.RefreshToken)
	if err != nil {
		return nil, err
	}

	now := m.now().UnixMilli()
	rec.OrcidAuth = *tokens
	rec.CreatedAt = now
	rec.ExpiresAt = now + tokens.ExpiresIn*1000
	rec.RetiresAt = now + m.retirementAge.Milliseconds()

	if err := m.links.Update(ctx, rec); err != nil {
		return nil, errors.NewInternalError("failed to store refreshed link record", err)
	}

	logger.Infow("refreshed retired ORCID token set", "username", rec.Username)
	return rec, nil
}

// Delete removes a user's link. The caller must be the owner, or a manager
// deleting on another user's behalf. The link's access token is revoked
// best-effort before deletion; revocation failure is logged and never blocks
// the unlink.
func (m *Manager) Delete(ctx context.Context, username, caller string, isManager bool) error {
	if caller != username && !isManager {
		return errors.NewNotAuthorizedError("cannot delete another user's ORCID link")
	}

	rec, err := m.links.Get(ctx, username)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("user has no ORCID link")
		}
		return errors.NewInternalError("failed to fetch link record", err)
	}

	if err := m.orcid.Revoke(ctx, rec.OrcidAuth.AccessToken); err != nil {
		logger.Warnw("failed to revoke ORCID access token", "username", username, "error", err)
	}

	if err := m.links.Delete(ctx, username); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("user has no ORCID link")
		}
		return errors.NewInternalError("failed to delete link record", err)
	}

	logger.Infow("deleted ORCID link", "username", username, "caller", caller)
	return nil
}

// GetOwnLink returns the full public-safe projection of a user's own link.
func (m *Manager) GetOwnLink(ctx context.Context, username string) (*LinkPublic, error) {
	rec, err := m.GetForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return &LinkPublic{
		Username:  rec.Username,
		Orcid:     rec.OrcidAuth.Orcid,
		Name:      rec.OrcidAuth.Name,
		Scope:     rec.OrcidAuth.Scope,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		RetiresAt: rec.RetiresAt,
	}, nil
}

// GetOtherLink returns the minimal projection of another user's link: the
// external id and display name only.
func (m *Manager) GetOtherLink(ctx context.Context, username string) (*LinkPublicNonOwner, error) {
	rec, err := m.GetForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return &LinkPublicNonOwner{
		Username: rec.Username,
		Orcid:    rec.OrcidAuth.Orcid,
		Name:     rec.OrcidAuth.Name,
	}, nil
}
