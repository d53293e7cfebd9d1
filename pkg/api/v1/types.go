// Package v1 contains the HTTP handlers for the ORCID Link API: the JSON
// endpoints consumed by programmatic clients and the browser-redirect legs
// of the OAuth linking flow.
package v1

import (
	"context"

	"github.com/kbase/orcidlink/pkg/linking"
	"github.com/kbase/orcidlink/pkg/links"
)

// LinkingService is the linking-session surface consumed by the handlers.
type LinkingService interface {
	Create(ctx context.Context, username, caller string) (string, error)
	Start(ctx context.Context, sessionID string, returnLink *string, skipPrompt bool) (string, error)
	Continue(ctx context.Context, sessionID, code string) (*linking.CompletedSession, error)
	Get(ctx context.Context, sessionID, username string) (*linking.CompletedSession, error)
	Delete(ctx context.Context, sessionID, username string) error
	Finish(ctx context.Context, sessionID, username string) error
}

// LinkManager is the link-record surface consumed by the handlers.
type LinkManager interface {
	Delete(ctx context.Context, username, caller string, isManager bool) error
	GetOwnLink(ctx context.Context, username string) (*links.LinkPublic, error)
	GetOtherLink(ctx context.Context, username string) (*links.LinkPublicNonOwner, error)
}

type createLinkingSessionRequest struct {
	Username string `json:"username"`
}

type createLinkingSessionResponse struct {
	SessionID string `json:"session_id"`
}

// sessionOrcidAuthView is the public-safe subset of a session's token grant.
// Access and refresh tokens are deliberately absent.
type sessionOrcidAuthView struct {
	Name      string `json:"name"`
	Orcid     string `json:"orcid"`
	Scope     string `json:"scope"`
	ExpiresIn int64  `json:"expires_in"`
}

// completedSessionView is the response shape for a completed linking
// session.
type completedSessionView struct {
	SessionID  string               `json:"session_id"`
	Username   string               `json:"username"`
	CreatedAt  int64                `json:"created_at"`
	ExpiresAt  int64                `json:"expires_at"`
	ReturnLink *string              `json:"return_link,omitempty"`
	SkipPrompt bool                 `json:"skip_prompt"`
	OrcidAuth  sessionOrcidAuthView `json:"orcid_auth"`
}

func newCompletedSessionView(session *linking.CompletedSession) completedSessionView {
	return completedSessionView{
		SessionID:  session.SessionID,
		Username:   session.Username,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
		ReturnLink: session.ReturnLink,
		SkipPrompt: session.SkipPrompt,
		OrcidAuth: sessionOrcidAuthView{
			Name:      session.OrcidAuth.Name,
			Orcid:     session.OrcidAuth.Orcid,
			Scope:     session.OrcidAuth.Scope,
			ExpiresIn: session.OrcidAuth.ExpiresIn,
		},
	}
}
