package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"igsync/pkg/acquisition"
	"igsync/pkg/auth"
	"igsync/pkg/checkpoint"
	"igsync/pkg/config"
	errs "igsync/pkg/errors"
	"igsync/pkg/instagram"
	"igsync/pkg/logger"
	"igsync/pkg/objectstore"
	"igsync/pkg/ratelimit"
	"igsync/pkg/retry"
	"igsync/pkg/session"
	"igsync/pkg/storage"
	syncer "igsync/pkg/sync"
	"igsync/pkg/ui"
)

// app holds the wired components shared by commands.
type app struct {
	cfg          *config.Config
	logger       logger.Logger
	sessions     *session.FileStore
	provider     *instagram.PacedProvider
	staging      *storage.Manager
	journal      *checkpoint.Manager
	sync         *syncer.Client
	orchestrator *acquisition.Orchestrator
}

// loadConfig loads configuration with the given flag overrides and
// initializes the process logger.
func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Debug("igsync starting")
	return cfg, log
}

// newProvider builds the paced provider client.
func newProvider(cfg *config.Config, log logger.Logger) *instagram.PacedProvider {
	client := instagram.NewClient(cfg.Provider, log)
	return instagram.NewPacedProvider(client, ratelimit.New(cfg.Pacing), log)
}

// buildApp wires every component the acquisition pipeline needs.
func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   log,
		sessions: session.NewFileStore(cfg.Account.SessionDir, log),
		provider: newProvider(cfg, log),
	}

	var err error
	if a.staging, err = storage.NewManager(cfg.Staging.Root, log); err != nil {
		return nil, err
	}
	if a.journal, err = checkpoint.NewManager(cfg.Batch.JournalDir, log); err != nil {
		// the journal is informational only
		log.WithError(err).Warn("Run journal unavailable")
		a.journal = nil
	}

	retryCfg := retry.FromSettings(cfg.Retry, log)

	deps := acquisition.Deps{
		Sessions: a.sessions,
		Provider: a.provider,
		Staging:  a.staging,
		Logger:   log,
	}
	if a.journal != nil {
		deps.Journal = a.journal
	}

	if cfg.Storage.UploadEnabled {
		store, err := objectstore.NewS3Store(ctx, cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create object store client: %w", err)
		}
		a.sync = syncer.NewClient(store, retryCfg, log)
		deps.Sync = a.sync
	}

	a.orchestrator, err = acquisition.New(acquisition.Options{
		Identity:      cfg.Account.Username,
		Bucket:        cfg.Storage.Bucket,
		UploadEnabled: cfg.Storage.UploadEnabled,
		Retry:         retryCfg,
	}, deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// resolveSecret returns the configured account secret, falling back to the
// credential stores.
func resolveSecret(cfg *config.Config, log logger.Logger) string {
	if cfg.Account.Password != "" {
		return cfg.Account.Password
	}
	if cfg.Account.Username == "" {
		return ""
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		return ""
	}
	account, err := manager.Retrieve(cfg.Account.Username)
	if err != nil {
		if !errors.Is(err, auth.ErrCredentialsNotFound) {
			log.WithError(err).Warn("Failed to read stored credentials")
		}
		return ""
	}
	return account.Password
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// explain prints a hint for failures the user can act on.
func explain(err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		ui.Println("\nNo stored session. Create one with:")
		ui.Println("  igsync login")
		ui.Println("  igsync session import-cookies <cookies.json>")
	case errors.Is(err, errs.ErrTwoFactorRequired):
		ui.Println("\nThe account requires two-factor authentication.")
		ui.Println("Log in with a browser and import its cookies with 'igsync session import-cookies'.")
	case errors.Is(err, errs.ErrRateLimited):
		ui.Println("\nThe provider is rate limiting requests. Wait a while and try again.")
	}
}
