package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/kbase/orcidlink/pkg/api/errors"
	"github.com/kbase/orcidlink/pkg/auth"
	"github.com/kbase/orcidlink/pkg/errors"
)

// LinkingSessionRoutes handles the JSON endpoints of the linking-session
// lifecycle. The two browser-redirect legs of the flow live in
// OAuthRoutes.
type LinkingSessionRoutes struct {
	linking LinkingService
}

// LinkingSessionRouter creates a router for linking-session management.
// Every route requires an authenticated identity in the request context.
func LinkingSessionRouter(linking LinkingService) http.Handler {
	routes := &LinkingSessionRoutes{linking: linking}

	r := chi.NewRouter()
	r.Post("/", apierrors.ErrorHandler(routes.createLinkingSession))
	r.Get("/{session_id}", apierrors.ErrorHandler(routes.getLinkingSession))
	r.Delete("/{session_id}", apierrors.ErrorHandler(routes.deleteLinkingSession))
	r.Put("/{session_id}/finish", apierrors.ErrorHandler(routes.finishLinkingSession))
	return r
}

// createLinkingSession opens a new linking session for the requested
// username and returns its id. The caller must be the user being linked.
func (s *LinkingSessionRoutes) createLinkingSession(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	var req createLinkingSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return errors.NewInternalError("failed to decode request body", err)
	}
	if req.Username == "" {
		req.Username = identity.Username
	}

	sessionID, err := s.linking.Create(r.Context(), req.Username, identity.Username)
	if err != nil {
		return err
	}

	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(createLinkingSessionResponse{SessionID: sessionID})
}

// getLinkingSession returns a completed session to its owner, with the
// access and refresh tokens redacted from the token grant.
func (s *LinkingSessionRoutes) getLinkingSession(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	session, err := s.linking.Get(r.Context(), chi.URLParam(r, "session_id"), identity.Username)
	if err != nil {
		return err
	}

	return json.NewEncoder(w).Encode(newCompletedSessionView(session))
}

// deleteLinkingSession abandons a completed session without creating a
// link, revoking the session's access token along the way.
func (s *LinkingSessionRoutes) deleteLinkingSession(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	if err := s.linking.Delete(r.Context(), chi.URLParam(r, "session_id"), identity.Username); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// finishLinkingSession promotes a completed session into the user's link
// record and deletes the session.
func (s *LinkingSessionRoutes) finishLinkingSession(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	if err := s.linking.Finish(r.Context(), chi.URLParam(r, "session_id"), identity.Username); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
