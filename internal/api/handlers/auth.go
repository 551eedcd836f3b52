// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/api/middleware"
	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/models"
	"github.com/vodvault/vodvault/internal/services/catalogsync"
)

type AuthHandler struct {
	backend  *backend.Client
	creds    *models.CredentialStore
	catalog  *models.CatalogStore
	sync     *catalogsync.Service
	sessions *scs.SessionManager
}

func NewAuthHandler(backendClient *backend.Client, creds *models.CredentialStore, catalog *models.CatalogStore, sync *catalogsync.Service, sessions *scs.SessionManager) *AuthHandler {
	return &AuthHandler{
		backend:  backendClient,
		creds:    creds,
		catalog:  catalog,
		sync:     sync,
		sessions: sessions,
	}
}

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ProviderToken string `json:"providerToken,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	account, err := h.backend.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var loginErr *backend.LoginError
		if errors.As(err, &loginErr) {
			log.Warn().Str("username", req.Username).Msg("Login rejected by backend")
			RespondError(w, http.StatusUnauthorized, loginErr.Error())
			return
		}
		log.Error().Err(err).Msg("Login request to backend failed")
		RespondError(w, http.StatusBadGateway, "Backend login request failed")
		return
	}

	// A login without an explicit provider token keeps the one already on
	// file, so re-authenticating does not wipe provider access.
	providerToken := req.ProviderToken
	if providerToken == "" {
		if existing, err := h.creds.Get(r.Context()); err == nil {
			providerToken = existing.ProviderToken
		}
	}

	creds := models.Credentials{
		Username:      req.Username,
		Password:      req.Password,
		ProviderToken: providerToken,
		UserID:        account.UserID,
		DisplayName:   account.DisplayName,
		Email:         account.Email,
	}
	if err := h.creds.Store(r.Context(), creds); err != nil {
		log.Error().Err(err).Msg("Failed to store credentials")
		RespondError(w, http.StatusInternalServerError, "Failed to store credentials")
		return
	}

	middleware.MarkAuthenticated(h.sessions, r, true)

	// A failed post-login sync is not fatal; the catalog can be synced again
	// explicitly and the cached copy keeps serving until then.
	if _, err := h.sync.Sync(r.Context()); err != nil {
		log.Error().Err(err).Msg("Post-login catalog sync failed")
	}

	log.Info().Str("username", req.Username).Msg("User logged in")
	RespondJSON(w, http.StatusOK, account)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.MarkAuthenticated(h.sessions, r, false)
	if err := h.sessions.Destroy(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to destroy session")
	}

	if err := h.catalog.Clear(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear catalog on logout")
	}
	if err := h.creds.Clear(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear credentials on logout")
	}

	log.Info().Msg("User logged out")
	RespondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	creds, err := h.creds.Get(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoCredentials) {
			RespondError(w, http.StatusNotFound, "Not logged in")
			return
		}
		log.Error().Err(err).Msg("Failed to load credentials")
		RespondError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	RespondJSON(w, http.StatusOK, creds)
}
