package linking

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/kbase/orcidlink/pkg/errors"
	"github.com/kbase/orcidlink/pkg/logger"
	"github.com/kbase/orcidlink/pkg/orcid"
	"github.com/kbase/orcidlink/pkg/storage"
)

// Service drives linking sessions from creation through finish, enforcing
// ownership, expiry, and valid transitions. All state lives in the injected
// stores; Service instances are safe for concurrent use.
type Service struct {
	sessions      storage.SessionStore
	links         storage.LinkStore
	orcid         orcid.ExchangeClient
	lifetime      time.Duration
	retirementAge time.Duration
	now           func() time.Time
}

// NewService creates a linking session service. lifetime bounds how long a
// session stays usable; retirementAge sets the retires_at horizon of link
// records created by Finish.
func NewService(
	sessions storage.SessionStore,
	links storage.LinkStore,
	exchangeClient orcid.ExchangeClient,
	lifetime time.Duration,
	retirementAge time.Duration,
) *Service {
	return &Service{
		sessions:      sessions,
		links:         links,
		orcid:         exchangeClient,
		lifetime:      lifetime,
		retirementAge: retirementAge,
		now:           time.Now,
	}
}

// WithClock replaces the service clock. Test support.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create makes a new linking session owned by username. The caller must be
// the owner: nobody can open a linking session on another user's behalf. A
// user who already has a link record cannot create another session; sessions
// merely in flight do not block, since no link exists yet.
func (s *Service) Create(ctx context.Context, username, caller string) (string, error) {
	if caller != username {
		return "", errors.NewNotAuthorizedError("cannot create a linking session for another user")
	}

	_, err := s.links.Get(ctx, username)
	switch {
	case err == nil:
		return "", errors.NewAlreadyLinkedError("user already has an ORCID link")
	case !stderrors.Is(err, storage.ErrNotFound):
		return "", errors.NewInternalError("failed to check for existing link", err)
	}

	now := s.now().UnixMilli()
	session := InitialSession{
		SessionID: uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now + s.lifetime.Milliseconds(),
	}
	if err := s.sessions.Insert(ctx, recordFromSession(session)); err != nil {
		return "", errors.NewInternalError("failed to store linking session", err)
	}

	logger.Infow("created linking session", "username", username, "session_id", session.SessionID)
	return session.SessionID, nil
}

// Start transitions an initial session to started, recording the optional
// return link and prompt preference, and returns the provider consent URL to
// redirect the browser to. Possession of the session id is the capability
// here: the browser redirect flow cannot reliably carry the auth cookie, so
// there is no ownership check beyond session existence.
func (s *Service) Start(ctx context.Context, sessionID string, returnLink *string, skipPrompt bool) (string, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	initial, ok := session.(InitialSession)
	if !ok {
		// Wrong stage is indistinguishable from absent to the caller.
		return "", errors.NewNotFoundError("linking session not found")
	}

	started := StartedSession{
		InitialSession: initial,
		ReturnLink:     returnLink,
		SkipPrompt:     skipPrompt,
	}
	if err := s.update(ctx, started); err != nil {
		return "", err
	}

	return s.orcid.AuthCodeURL(sessionID, skipPrompt), nil
}

// Continue handles the browser redirect back from the provider: it exchanges
// the authorization code and transitions the session from started to
// completed. On exchange failure the session is left in started so the user
// can retry, and the typed error is returned for the API layer to render as
// a UI redirect.
func (s *Service) Continue(ctx context.Context, sessionID, code string) (*CompletedSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	started, ok := session.(StartedSession)
	if !ok {
		return nil, errors.NewNotFoundError("linking session not found")
	}

	tokens, err := s.orcid.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	completed := CompletedSession{StartedSession: started, OrcidAuth: *tokens}
	if err := s.update(ctx, completed); err != nil {
		return nil, err
	}

	logger.Infow("linking session completed", "username", completed.Username, "session_id", sessionID)
	return &completed, nil
}

// Get returns a completed session to its owner. A session in any other
// stage is reported as absent; a session owned by someone else is reported
// as not authorized, with no session data in the error.
func (s *Service) Get(ctx context.Context, sessionID, username string) (*CompletedSession, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	completed, ok := session.(CompletedSession)
	if !ok {
		return nil, errors.NewNotFoundError("linking session not found")
	}
	if completed.Username != username {
		return nil, errors.NewNotAuthorizedError("linking session is owned by another user")
	}
	return &completed, nil
}

// Delete removes a completed session without promoting it, best-effort
// revoking the access token obtained during the session first.
func (s *Service) Delete(ctx context.Context, sessionID, username string) error {
	completed, err := s.Get(ctx, sessionID, username)
	if err != nil {
		return err
	}

	s.revoke(ctx, completed.OrcidAuth.AccessToken)

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("linking session not found")
		}
		return errors.NewInternalError("failed to delete linking session", err)
	}
	return nil
}

// Finish promotes a completed session into the durable link record and
// deletes the session. This is the sole path by which a link record is
// created. The atomic delete-where-completed is the commit point: of two
// concurrent finish calls for one session, exactly one wins and the loser
// sees not-found.
func (s *Service) Finish(ctx context.Context, sessionID, username string) error {
	completed, err := s.Get(ctx, sessionID, username)
	if err != nil {
		return err
	}

	deleted, err := s.sessions.DeleteCompleted(ctx, sessionID)
	if err != nil {
		return errors.NewInternalError("failed to delete linking session", err)
	}
	if !deleted {
		return errors.NewNotFoundError("linking session not found")
	}

	now := s.now().UnixMilli()
	link := &storage.LinkRecord{
		Username:  username,
		OrcidAuth: completed.OrcidAuth,
		CreatedAt: now,
		ExpiresAt: now + completed.OrcidAuth.ExpiresIn*1000,
		RetiresAt: now + s.retirementAge.Milliseconds(),
	}
	if err := s.links.Insert(ctx, link); err != nil {
		if stderrors.Is(err, storage.ErrAlreadyExists) {
			return errors.NewAlreadyLinkedError("user already has an ORCID link")
		}
		return errors.NewInternalError("failed to store link record", err)
	}

	logger.Infow("linking session finished", "username", username, "orcid", completed.OrcidAuth.Orcid)
	return nil
}

// load fetches a session and enforces its deadline: an expired session is
// deleted opportunistically and reported as absent.
func (s *Service) load(ctx context.Context, sessionID string) (Session, error) {
	rec, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("linking session not found")
		}
		return nil, errors.NewInternalError("failed to fetch linking session", err)
	}

	session, err := sessionFromRecord(rec)
	if err != nil {
		return nil, errors.NewInternalError("stored linking session is malformed", err)
	}

	if session.Expiry() <= s.now().UnixMilli() {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			logger.Warnw("failed to delete expired linking session", "session_id", sessionID, "error", err)
		}
		return nil, errors.NewNotFoundError("linking session not found")
	}
	return session, nil
}

func (s *Service) update(ctx context.Context, session Session) error {
	if err := s.sessions.Update(ctx, recordFromSession(session)); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("linking session not found")
		}
		return errors.NewInternalError("failed to update linking session", err)
	}
	return nil
}

// revoke best-effort revokes an access token. Failure is observable in the
// logs but never blocks the caller's primary operation.
func (s *Service) revoke(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if err := s.orcid.Revoke(ctx, accessToken); err != nil {
		logger.Warnw("failed to revoke ORCID access token", "error", err)
	}
}
