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

// SessionStore implements storage.SessionStore using SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a new SQLite-backed SessionStore.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db.DB()}
}

var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `session_id, username, created_at, expires_at, state, return_link, skip_prompt, orcid_auth`

// Get retrieves a session by id.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*storage.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM linking_sessions WHERE session_id = ?`, sessionID)
	return scanSession(row)
}

// Insert stores a new session.
func (s *SessionStore) Insert(ctx context.Context, rec *storage.SessionRecord) error {
	authJSON, err := encodeTokenSet(rec.OrcidAuth)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO linking_sessions (
			session_id, username, created_at, expires_at, state, return_link, skip_prompt, orcid_auth
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Username, rec.CreatedAt, rec.ExpiresAt,
		rec.State, rec.ReturnLink, rec.SkipPrompt, authJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting linking session: %w", err)
	}
	return nil
}

// Update replaces an existing session.
func (s *SessionStore) Update(ctx context.Context, rec *storage.SessionRecord) error {
	authJSON, err := encodeTokenSet(rec.OrcidAuth)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE linking_sessions
		SET state = ?, return_link = ?, skip_prompt = ?, orcid_auth = ?
		WHERE session_id = ?`,
		rec.State, rec.ReturnLink, rec.SkipPrompt, authJSON, rec.SessionID,
	)
	if err != nil {
		return fmt.Errorf("updating linking session: %w", err)
	}
	return requireRow(res)
}

// Delete removes a session by id.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM linking_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting linking session: %w", err)
	}
	return requireRow(res)
}

// DeleteCompleted atomically removes a session only if it is completed.
// The single-statement delete is the commit point that lets exactly one of
// two concurrent finish calls win.
func (s *SessionStore) DeleteCompleted(ctx context.Context, sessionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM linking_sessions WHERE session_id = ? AND state = ?`,
		sessionID, storage.SessionStateCompleted)
	if err != nil {
		return false, fmt.Errorf("deleting completed linking session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return n > 0, nil
}

// Reset removes all sessions.
func (s *SessionStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM linking_sessions`)
	if err != nil {
		return fmt.Errorf("resetting linking sessions: %w", err)
	}
	return nil
}

func scanSession(row *sql.Row) (*storage.SessionRecord, error) {
	var rec storage.SessionRecord
	var authJSON sql.NullString
	err := row.Scan(
		&rec.SessionID, &rec.Username, &rec.CreatedAt, &rec.ExpiresAt,
		&rec.State, &rec.ReturnLink, &rec.SkipPrompt, &authJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning linking session: %w", err)
	}
	if authJSON.Valid {
		var tokens orcid.TokenSet
		if err := json.Unmarshal([]byte(authJSON.String), &tokens); err != nil {
			return nil, fmt.Errorf("decoding stored token set: %w", err)
		}
		rec.OrcidAuth = &tokens
	}
	return &rec, nil
}

func encodeTokenSet(tokens *orcid.TokenSet) (sql.NullString, error) {
	if tokens == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding token set: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// requireRow converts a zero-row write into ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
