package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kbase/orcidlink/pkg/orcid"
	"github.com/kbase/orcidlink/pkg/storage"
)

// LinkStore implements storage.LinkStore using SQLite.
type LinkStore struct {
	db *sql.DB
}

// NewLinkStore creates a new SQLite-backed LinkStore.
func NewLinkStore(db *DB) *LinkStore {
	return &LinkStore{db: db.DB()}
}

var _ storage.LinkStore = (*LinkStore)(nil)

// Get retrieves the link record for a username.
func (s *LinkStore) Get(ctx context.Context, username string) (*storage.LinkRecord, error) {
	var rec storage.LinkRecord
	var authJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, orcid_auth, created_at, expires_at, retires_at
		FROM links WHERE username = ?`, username,
	).Scan(&rec.Username, &authJSON, &rec.CreatedAt, &rec.ExpiresAt, &rec.RetiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning link record: %w", err)
	}
	var tokens orcid.TokenSet
	if err := json.Unmarshal([]byte(authJSON), &tokens); err != nil {
		return nil, fmt.Errorf("decoding stored token set: %w", err)
	}
	rec.OrcidAuth = tokens
	return &rec, nil
}

// Insert stores a new link record. The username primary key enforces the
// at-most-one-link-per-user invariant.
func (s *LinkStore) Insert(ctx context.Context, rec *storage.LinkRecord) error {
	authJSON, err := json.Marshal(rec.OrcidAuth)
	if err != nil {
		return fmt.Errorf("encoding token set: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO links (username, orcid_auth, created_at, expires_at, retires_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.Username, string(authJSON), rec.CreatedAt, rec.ExpiresAt, rec.RetiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting link record: %w", err)
	}
	return nil
}

// Update replaces an existing link record in place.
func (s *LinkStore) Update(ctx context.Context, rec *storage.LinkRecord) error {
	authJSON, err := json.Marshal(rec.OrcidAuth)
	if err != nil {
		return fmt.Errorf("encoding token set: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE links
		SET orcid_auth = ?, created_at = ?, expires_at = ?, retires_at = ?
		WHERE username = ?`,
		string(authJSON), rec.CreatedAt, rec.ExpiresAt, rec.RetiresAt, rec.Username,
	)
	if err != nil {
		return fmt.Errorf("updating link record: %w", err)
	}
	return requireRow(res)
}

// Delete removes the link record for a username.
func (s *LinkStore) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("deleting link record: %w", err)
	}
	return requireRow(res)
}

// Reset removes all link records.
func (s *LinkStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM links`)
	if err != nil {
		return fmt.Errorf("resetting link records: %w", err)
	}
	return nil
}
