// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/api"
	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/buildinfo"
	"github.com/vodvault/vodvault/internal/config"
	"github.com/vodvault/vodvault/internal/database"
	"github.com/vodvault/vodvault/internal/metrics"
	"github.com/vodvault/vodvault/internal/models"
	"github.com/vodvault/vodvault/internal/offline"
	"github.com/vodvault/vodvault/internal/playback"
	"github.com/vodvault/vodvault/internal/services/catalogsync"
	"github.com/vodvault/vodvault/internal/vimeo"
)

type Application struct {
	configDir string
	dataDir   string
	logPath   string
	pprofFlag bool
}

func NewApplication(configDir, dataDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	// CLI flags win over config file values; export them before the config
	// is loaded so reloads keep honoring them.
	if app.dataDir != "" {
		os.Setenv("VODVAULT__DATA_DIR", app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("VODVAULT__LOG_PATH", app.logPath)
	}

	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting vodvault")

	// Initialize database
	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.DownloadDir(), 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DownloadDir()).Msg("Failed to create download directory")
	}

	// Initialize stores
	catalogStore := models.NewCatalogStore(db)
	if _, err := catalogStore.Load(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to preload cached catalog, starting empty")
	}

	credentialStore, err := models.NewCredentialStore(db, cfg.EncryptionKey())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize credential store")
	}

	// Initialize clients
	backendClient := backend.NewClient(cfg.Config.BackendURL, 0)
	providerClient := vimeo.NewClient(vimeo.Config{
		BaseURL: cfg.Config.ProviderURL,
	})

	// Initialize services
	syncService := catalogsync.NewService(backendClient, catalogStore, credentialStore)
	scanner := offline.NewScanner(cfg.DownloadDir(), cfg.RetentionWindow(), catalogStore)
	downloadManager := offline.NewManager(cfg.DownloadDir(), backendClient, nil)
	resolver := playback.NewResolver(credentialStore, providerClient)

	// Periodic retention sweep keeps expired artifacts from outliving their
	// window between listing requests.
	sweeper := offline.NewSweeper(scanner, cfg.SweepInterval())
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper.Start(sweepCtx)
	defer sweeper.Stop()

	// Initialize session manager
	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour * 30
	sessionManager.Cookie.Name = "vodvault_user_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode
	sessionManager.Cookie.Secure = false
	sessionManager.Cookie.Persist = false

	httpServer := api.NewServer(&api.Dependencies{
		Config:          cfg,
		Version:         buildinfo.Version,
		SessionManager:  sessionManager,
		DB:              db,
		CatalogStore:    catalogStore,
		CredentialStore: credentialStore,
		BackendClient:   backendClient,
		SyncService:     syncService,
		Scanner:         scanner,
		Downloads:       downloadManager,
		Resolver:        resolver,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	if cfg.Config.MetricsEnabled {
		go func() {
			metricsServer := metrics.NewServer(cfg.Config.MetricsHost, cfg.Config.MetricsPort)
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		os.Exit(1)
	}
}
