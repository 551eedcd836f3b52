// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api serves the HTTP surface: auth, catalog, offline storage and
// playback resolution.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/api/handlers"
	"github.com/vodvault/vodvault/internal/api/middleware"
	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/config"
	"github.com/vodvault/vodvault/internal/database"
	"github.com/vodvault/vodvault/internal/models"
	"github.com/vodvault/vodvault/internal/offline"
	"github.com/vodvault/vodvault/internal/playback"
	"github.com/vodvault/vodvault/internal/services/catalogsync"
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	sessionManager  *scs.SessionManager
	db              *database.DB
	catalogStore    *models.CatalogStore
	credentialStore *models.CredentialStore
	backendClient   *backend.Client
	syncService     *catalogsync.Service
	scanner         *offline.Scanner
	downloads       *offline.Manager
	resolver        *playback.Resolver
}

type Dependencies struct {
	Config          *config.AppConfig
	Version         string
	SessionManager  *scs.SessionManager
	DB              *database.DB
	CatalogStore    *models.CatalogStore
	CredentialStore *models.CredentialStore
	BackendClient   *backend.Client
	SyncService     *catalogsync.Service
	Scanner         *offline.Scanner
	Downloads       *offline.Manager
	Resolver        *playback.Resolver
}

func NewServer(deps *Dependencies) *Server {
	return &Server{
		server: &http.Server{
			ReadHeaderTimeout: 15 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:          log.Logger.With().Str("module", "api").Logger(),
		config:          deps.Config,
		version:         deps.Version,
		sessionManager:  deps.SessionManager,
		db:              deps.DB,
		catalogStore:    deps.CatalogStore,
		credentialStore: deps.CredentialStore,
		backendClient:   deps.BackendClient,
		syncService:     deps.SyncService,
		scanner:         deps.Scanner,
		downloads:       deps.Downloads,
		resolver:        deps.Resolver,
	}
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := fmt.Sprintf("%s:%d", s.config.Config.Host, s.config.Config.Port)

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msg("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Msgf("Starting API server - Open: http://%s%s", host, s.config.Config.BaseURL)

	s.server.Handler = s.Handler()

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)

	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),
		httpcompression.GzipCompressionLevel(2),
		httpcompression.Prefer(httpcompression.PreferServer),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowCredentials: true,
		AllowedMethods:   []string{"HEAD", "OPTIONS", "GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowOriginFunc:  func(origin string) bool { return true },
		MaxAge:           300,
	})
	r.Use(corsMiddleware.Handler)

	r.Use(s.sessionManager.LoadAndSave)

	healthHandler := handlers.NewHealthHandler(s.db)
	authHandler := handlers.NewAuthHandler(s.backendClient, s.credentialStore, s.catalogStore, s.syncService, s.sessionManager)
	catalogHandler := handlers.NewCatalogHandler(s.catalogStore, s.credentialStore, s.backendClient, s.syncService)
	offlineHandler := handlers.NewOfflineHandler(s.scanner, s.downloads)
	playbackHandler := handlers.NewPlaybackHandler(s.resolver)

	apiRouter := chi.NewRouter()

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))

		r.Route("/auth", func(r chi.Router) {
			r.Use(chimiddleware.ThrottleBacklog(1, 1, time.Second))

			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IsAuthenticated(s.sessionManager))

				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.IsAuthenticated(s.sessionManager))

			r.Route("/catalog", catalogHandler.Routes)
			r.Route("/offline", offlineHandler.Routes)
			r.Route("/playback", playbackHandler.Routes)
		})
	})

	r.Route("/healthz", healthHandler.Routes)

	baseURL := s.config.Config.BaseURL
	if baseURL == "" {
		baseURL = "/"
	}

	r.Mount(baseURL+"api", apiRouter)

	return r
}
