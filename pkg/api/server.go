// Package api assembles and serves the ORCID Link HTTP surface: the
// authenticated JSON API under /api/v1, the browser-redirect legs of the
// linking flow at the root, and the unauthenticated status endpoint.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/kbase/orcidlink/pkg/api/errors"
	v1 "github.com/kbase/orcidlink/pkg/api/v1"
	"github.com/kbase/orcidlink/pkg/auth"
	"github.com/kbase/orcidlink/pkg/kbauth"
	"github.com/kbase/orcidlink/pkg/logger"
)

const readHeaderTimeout = 10 * time.Second

// Config carries the server wiring: the services behind the handlers plus
// the handful of settings the routing layer needs.
type Config struct {
	Address     string
	Linking     v1.LinkingService
	Links       v1.LinkManager
	Verifier    kbauth.Verifier
	ManagerRole string
	UIOrigin    string
	// Timeout bounds request handling end to end, including upstream
	// calls to the auth service and ORCID.
	Timeout time.Duration
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the full route tree. The browser legs sit outside the
// authentication middleware: the start leg authenticates via the session
// cookie itself so failures can render as UI redirects instead of JSON,
// and the continue leg arrives from ORCID with no credential at all.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(cfg.Timeout),
		headersMiddleware,
	)

	r.Mount("/status", v1.StatusRouter())
	r.Mount("/linking-sessions", v1.OAuthRouter(cfg.Linking, cfg.Verifier, cfg.UIOrigin))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(auth.Middleware(cfg.Verifier, func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.WriteError(w, err)
		}))
		api.Mount("/linking-sessions", v1.LinkingSessionRouter(cfg.Linking))
		api.Mount("/link", v1.LinkRouter(cfg.Links, cfg.Verifier, cfg.ManagerRole))
	})

	return r
}

// Serve starts the server on the configured address and blocks until ctx
// is cancelled, then shuts down gracefully. It is assumed that the caller
// sets up appropriate signal handling.
func Serve(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              cfg.Address,
		Handler:           NewRouter(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("starting HTTP server on %s", cfg.Address)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Infof("HTTP server stopped")
	return nil
}
