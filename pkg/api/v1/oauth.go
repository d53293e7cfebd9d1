package v1

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kbase/orcidlink/pkg/auth"
	"github.com/kbase/orcidlink/pkg/errors"
	"github.com/kbase/orcidlink/pkg/kbauth"
	"github.com/kbase/orcidlink/pkg/logger"
)

// OAuthRoutes handles the two browser-redirect legs of the linking flow:
// sending the user to the ORCID consent screen and receiving them back.
//
// These legs are navigated by a browser, not called by a client, so they
// never answer with JSON. Success and failure alike end in a 302: success
// to the next step of the flow, failure to the UI error page carrying the
// taxonomy code and message as query parameters.
type OAuthRoutes struct {
	linking  LinkingService
	verifier kbauth.Verifier
	uiOrigin string
}

// OAuthRouter creates a router for the browser legs of the OAuth flow.
// uiOrigin is the base URL of the UI pages the legs redirect to: the
// continuation page on success and the error page on failure.
func OAuthRouter(linking LinkingService, verifier kbauth.Verifier, uiOrigin string) http.Handler {
	routes := &OAuthRoutes{
		linking:  linking,
		verifier: verifier,
		uiOrigin: uiOrigin,
	}

	r := chi.NewRouter()
	r.Get("/{session_id}/oauth/start", routes.startLinkingSession)
	r.Get("/oauth/continue", routes.continueLinkingSession)
	return r
}

// startLinkingSession begins the interactive part of the flow: it records
// the return link and prompt preference on the session and bounces the
// browser to the ORCID consent screen. Authentication rides on the KBase
// session cookie since the browser cannot attach an authorization header
// to a navigation.
func (s *OAuthRoutes) startLinkingSession(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Authenticate(r, s.verifier); err != nil {
		s.redirectError(w, r, err)
		return
	}

	query := r.URL.Query()
	var returnLink *string
	if rl := query.Get("return_link"); rl != "" {
		returnLink = &rl
	}
	skipPrompt := query.Get("skip_prompt") == "true"

	consentURL, err := s.linking.Start(r.Context(), chi.URLParam(r, "session_id"), returnLink, skipPrompt)
	if err != nil {
		s.redirectError(w, r, err)
		return
	}

	http.Redirect(w, r, consentURL, http.StatusFound)
}

// continueLinkingSession receives the browser back from ORCID. The state
// parameter carries the session id planted by Start. A denial or error
// reported by the provider in the query string never reaches the exchange
// endpoint; it is rendered straight to the UI error page.
func (s *OAuthRoutes) continueLinkingSession(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if oauthErr := query.Get("error"); oauthErr != "" {
		s.redirectError(w, r, translateCallbackError(oauthErr, query.Get("error_description")))
		return
	}

	sessionID := query.Get("state")
	code := query.Get("code")
	if sessionID == "" || code == "" {
		s.redirectError(w, r, errors.NewUpstreamError("OAuth callback is missing the code or state parameter", nil))
		return
	}

	session, err := s.linking.Continue(r.Context(), sessionID, code)
	if err != nil {
		s.redirectError(w, r, err)
		return
	}

	http.Redirect(w, r, s.continueRedirectURL(session.ReturnLink), http.StatusFound)
}

// continueRedirectURL is where a successfully completed session lands the
// user: the return link stored on the session when present, else the UI
// continuation page.
func (s *OAuthRoutes) continueRedirectURL(returnLink *string) string {
	if returnLink != nil && *returnLink != "" {
		return *returnLink
	}
	return s.uiOrigin + "/continue"
}

// redirectError sends the browser to the UI error page with the taxonomy
// code and message in the query string.
func (s *OAuthRoutes) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	logger.Warnw("linking flow failed, redirecting to error page",
		"path", r.URL.Path, "code", errors.Code(err), "error", err)

	target := fmt.Sprintf("%s/error?code=%d&message=%s",
		s.uiOrigin, errors.Code(err), url.QueryEscape(errors.Message(err)))
	http.Redirect(w, r, target, http.StatusFound)
}

// translateCallbackError maps an error reported by the provider on the
// callback query string onto the taxonomy. A user declining the consent
// screen comes back as access_denied.
func translateCallbackError(code, description string) error {
	msg := fmt.Sprintf("OAuth error %q", code)
	if description != "" {
		msg = fmt.Sprintf("%s: %s", msg, description)
	}
	if code == "access_denied" {
		return errors.NewNotAuthorizedError(msg)
	}
	return errors.NewUpstreamError(msg, nil)
}
