// Package linking implements the linking-session state machine: the
// multi-step, browser-redirect-based OAuth handshake that ends with a
// durable link record.
//
// A session advances linearly through three stages, with no cycles and no
// going backward:
//
//	Initial --start--> Started --continue--> Completed --finish--> (link created, session deleted)
//
// A session in any stage may also be deleted without promotion, either
// explicitly or because it expired.
package linking

import (
	"fmt"

	"github.com/kbase/orcidlink/pkg/orcid"
	"github.com/kbase/orcidlink/pkg/storage"
)

// Stage identifies which lifecycle stage a session is in.
type Stage string

// Session lifecycle stages.
const (
	StageInitial   Stage = Stage(storage.SessionStateInitial)
	StageStarted   Stage = Stage(storage.SessionStateStarted)
	StageCompleted Stage = Stage(storage.SessionStateCompleted)
)

// Session is the common surface of the three session stages. The concrete
// type is the discriminant; code that needs stage-specific fields type
// switches on it.
type Session interface {
	// ID returns the opaque unique session id.
	ID() string
	// Owner returns the username that created the session. Immutable.
	Owner() string
	// Expiry returns the session deadline in epoch milliseconds, fixed at
	// creation and independent of stage.
	Expiry() int64
	// Stage returns the lifecycle stage of the session.
	Stage() Stage
}

// InitialSession is a freshly created session: the user has asked to link
// but has not yet been sent to the provider consent screen.
type InitialSession struct {
	SessionID string
	Username  string
	CreatedAt int64
	ExpiresAt int64
}

// ID implements Session.
func (s InitialSession) ID() string { return s.SessionID }

// Owner implements Session.
func (s InitialSession) Owner() string { return s.Username }

// Expiry implements Session.
func (s InitialSession) Expiry() int64 { return s.ExpiresAt }

// Stage implements Session.
func (InitialSession) Stage() Stage { return StageInitial }

// StartedSession is a session whose user has been redirected to the
// provider consent screen.
type StartedSession struct {
	InitialSession
	ReturnLink *string
	SkipPrompt bool
}

// Stage implements Session.
func (StartedSession) Stage() Stage { return StageStarted }

// CompletedSession is a session whose authorization code was successfully
// exchanged for a token set. Only completed sessions can be finished into a
// link record.
type CompletedSession struct {
	StartedSession
	OrcidAuth orcid.TokenSet
}

// Stage implements Session.
func (CompletedSession) Stage() Stage { return StageCompleted }

// sessionFromRecord reconstructs the staged session type from a stored
// record, validating that the fields the stage requires are present.
func sessionFromRecord(rec *storage.SessionRecord) (Session, error) {
	initial := InitialSession{
		SessionID: rec.SessionID,
		Username:  rec.Username,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	started := StartedSession{
		InitialSession: initial,
		ReturnLink:     rec.ReturnLink,
		SkipPrompt:     rec.SkipPrompt,
	}

	switch rec.State {
	case storage.SessionStateInitial:
		return initial, nil
	case storage.SessionStateStarted:
		return started, nil
	case storage.SessionStateCompleted:
		if rec.OrcidAuth == nil {
			return nil, fmt.Errorf("completed session %s has no stored token set", rec.SessionID)
		}
		return CompletedSession{StartedSession: started, OrcidAuth: *rec.OrcidAuth}, nil
	default:
		return nil, fmt.Errorf("session %s has unknown state %q", rec.SessionID, rec.State)
	}
}

// recordFromSession converts a staged session back into its stored form.
func recordFromSession(session Session) *storage.SessionRecord {
	rec := &storage.SessionRecord{
		SessionID: session.ID(),
		Username:  session.Owner(),
		ExpiresAt: session.Expiry(),
		State:     string(session.Stage()),
	}
	switch s := session.(type) {
	case InitialSession:
		rec.CreatedAt = s.CreatedAt
	case StartedSession:
		rec.CreatedAt = s.CreatedAt
		rec.ReturnLink = s.ReturnLink
		rec.SkipPrompt = s.SkipPrompt
	case CompletedSession:
		rec.CreatedAt = s.CreatedAt
		rec.ReturnLink = s.ReturnLink
		rec.SkipPrompt = s.SkipPrompt
		auth := s.OrcidAuth
		rec.OrcidAuth = &auth
	}
	return rec
}
