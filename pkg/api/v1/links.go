package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/kbase/orcidlink/pkg/api/errors"
	"github.com/kbase/orcidlink/pkg/auth"
	"github.com/kbase/orcidlink/pkg/kbauth"
)

// LinkRoutes handles the link-record endpoints: viewing and removing
// established ORCID links.
type LinkRoutes struct {
	links       LinkManager
	verifier    kbauth.Verifier
	managerRole string
}

// LinkRouter creates a router for link-record management. verifier and
// managerRole back the custom-role check that lets link managers remove
// other users' links.
func LinkRouter(links LinkManager, verifier kbauth.Verifier, managerRole string) http.Handler {
	routes := &LinkRoutes{
		links:       links,
		verifier:    verifier,
		managerRole: managerRole,
	}

	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.getOwnLink))
	r.Delete("/", apierrors.ErrorHandler(routes.deleteOwnLink))
	r.Get("/{username}", apierrors.ErrorHandler(routes.getOtherLink))
	r.Delete("/{username}", apierrors.ErrorHandler(routes.deleteOtherLink))
	return r
}

// getOwnLink returns the caller's own link in its full public shape.
func (s *LinkRoutes) getOwnLink(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	link, err := s.links.GetOwnLink(r.Context(), identity.Username)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(link)
}

// getOtherLink returns another user's link in its minimal shape: just
// enough to show who a username is linked to.
func (s *LinkRoutes) getOtherLink(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.MustIdentity(r); err != nil {
		return err
	}

	link, err := s.links.GetOtherLink(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(link)
}

// deleteOwnLink removes the caller's own link.
func (s *LinkRoutes) deleteOwnLink(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	if err := s.links.Delete(r.Context(), identity.Username, identity.Username, false); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// deleteOtherLink removes another user's link. Allowed only for callers
// holding the link-manager custom role; the role check happens here, at
// the edge, so the manager decision rides on the caller's live account
// state rather than anything cached in the link layer.
func (s *LinkRoutes) deleteOtherLink(w http.ResponseWriter, r *http.Request) error {
	identity, err := auth.MustIdentity(r)
	if err != nil {
		return err
	}

	isManager := false
	if username := chi.URLParam(r, "username"); username != identity.Username {
		account, err := s.verifier.GetMe(r.Context(), identity.Token)
		if err != nil {
			return err
		}
		isManager = account.HasCustomRole(s.managerRole)
	}

	if err := s.links.Delete(r.Context(), chi.URLParam(r, "username"), identity.Username, isManager); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
