package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kbase/orcidlink/pkg/api"
	"github.com/kbase/orcidlink/pkg/cache"
	"github.com/kbase/orcidlink/pkg/config"
	"github.com/kbase/orcidlink/pkg/kbauth"
	"github.com/kbase/orcidlink/pkg/linking"
	"github.com/kbase/orcidlink/pkg/links"
	"github.com/kbase/orcidlink/pkg/logger"
	"github.com/kbase/orcidlink/pkg/orcid"
	"github.com/kbase/orcidlink/pkg/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ORCID Link API server",
	Long: `Start the HTTP server exposing the ORCID Link API: the authenticated JSON
endpoints for managing linking sessions and link records, and the browser
redirect legs of the OAuth flow.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("config", "c", "", "Path to a yaml config file")
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		logger.Fatalf("Failed to bind config flag: %v", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("failed to close database: %v", err)
		}
	}()

	sessions := sqlite.NewSessionStore(db)
	linkStore := sqlite.NewLinkStore(db)

	verifier := kbauth.NewClient(
		cfg.AuthBaseURL,
		cfg.RequestTimeout,
		cache.New(cfg.TokenCacheMaxSize),
		cfg.TokenCacheTTL,
	)

	exchangeClient := orcid.NewClient(orcid.Config{
		OAuthBaseURL: cfg.OrcidOAuthBaseURL,
		ClientID:     cfg.OrcidClientID,
		ClientSecret: cfg.OrcidClientSecret,
		RedirectURI:  cfg.ContinueURL,
		Timeout:      cfg.RequestTimeout,
	})

	linkingService := linking.NewService(
		sessions, linkStore, exchangeClient, cfg.SessionLifetime, cfg.RetirementAge)
	linkManager := links.NewManager(linkStore, exchangeClient, cfg.RetirementAge)

	return api.Serve(ctx, api.Config{
		Address:     cfg.ListenAddress,
		Linking:     linkingService,
		Links:       linkManager,
		Verifier:    verifier,
		ManagerRole: cfg.ManagerRole,
		UIOrigin:    cfg.UIOrigin,
		Timeout:     cfg.RequestTimeout,
	})
}
