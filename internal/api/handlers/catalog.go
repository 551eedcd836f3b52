// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/backend"
	"github.com/vodvault/vodvault/internal/models"
	"github.com/vodvault/vodvault/internal/services/catalogsync"
)

type CatalogHandler struct {
	catalog *models.CatalogStore
	creds   *models.CredentialStore
	backend *backend.Client
	sync    *catalogsync.Service
}

func NewCatalogHandler(catalog *models.CatalogStore, creds *models.CredentialStore, backendClient *backend.Client, sync *catalogsync.Service) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		creds:   creds,
		backend: backendClient,
		sync:    sync,
	}
}

func (h *CatalogHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/sync", h.syncCatalog)
	r.Route("/{videoID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/favorite", h.toggleFavorite)
		r.Get("/notes", h.listNotes)
		r.Post("/notes", h.addNote)
	})
}

// list serves the cached catalog. `search` fuzzy-matches titles and tag
// names, `favorites=true` narrows to favorited videos.
func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	var videos []models.VideoAsset
	if r.URL.Query().Get("favorites") == "true" {
		videos = h.catalog.Favorites()
	} else {
		videos = h.catalog.List()
	}

	if search := r.URL.Query().Get("search"); search != "" {
		videos = filterVideos(videos, search)
	}

	RespondJSON(w, http.StatusOK, videos)
}

func filterVideos(videos []models.VideoAsset, search string) []models.VideoAsset {
	matched := make([]models.VideoAsset, 0, len(videos))
	for _, v := range videos {
		if fuzzy.MatchNormalizedFold(search, v.Title) || matchTags(search, v.Techniques) ||
			matchTags(search, v.Positions) || matchTags(search, v.Types) {
			matched = append(matched, v)
		}
	}
	return matched
}

func matchTags(search string, tags []models.Tag) bool {
	for _, tag := range tags {
		if fuzzy.MatchNormalizedFold(search, tag.Name) {
			return true
		}
	}
	return false
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "videoID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	video, ok := h.catalog.Get(id)
	if !ok {
		RespondError(w, http.StatusNotFound, "Video not found")
		return
	}

	RespondJSON(w, http.StatusOK, video)
}

func (h *CatalogHandler) syncCatalog(w http.ResponseWriter, r *http.Request) {
	videos, err := h.sync.Sync(r.Context())
	if err != nil {
		if errors.Is(err, models.ErrNoCredentials) {
			RespondError(w, http.StatusUnauthorized, "Not logged in")
			return
		}
		log.Error().Err(err).Msg("Catalog sync failed")
		RespondError(w, http.StatusBadGateway, "Catalog sync failed")
		return
	}

	RespondJSON(w, http.StatusOK, videos)
}

func (h *CatalogHandler) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "videoID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	favorite, err := h.sync.ToggleFavorite(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			RespondError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Error().Err(err).Int("videoID", id).Msg("Failed to toggle favorite")
		RespondError(w, http.StatusInternalServerError, "Failed to toggle favorite")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (h *CatalogHandler) listNotes(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.Atoi(chi.URLParam(r, "videoID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	userID, err := h.currentUserID(r)
	if err != nil {
		RespondError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	notes, err := h.backend.GetNotes(r.Context(), userID, videoID)
	if err != nil {
		log.Error().Err(err).Int("videoID", videoID).Msg("Failed to fetch notes")
		RespondError(w, http.StatusBadGateway, "Failed to fetch notes")
		return
	}

	RespondJSON(w, http.StatusOK, notes)
}

type addNoteRequest struct {
	Text              string `json:"text"`
	PlaybackTimestamp int    `json:"playbackTimestamp"`
}

func (h *CatalogHandler) addNote(w http.ResponseWriter, r *http.Request) {
	videoID, err := strconv.Atoi(chi.URLParam(r, "videoID"))
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid video ID")
		return
	}

	var req addNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		RespondError(w, http.StatusBadRequest, "Note text is required")
		return
	}

	userID, err := h.currentUserID(r)
	if err != nil {
		RespondError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	note, err := h.backend.AddNote(r.Context(), backend.Note{
		UserID:            userID,
		VideoID:           videoID,
		Text:              req.Text,
		PlaybackTimestamp: req.PlaybackTimestamp,
	})
	if err != nil {
		log.Error().Err(err).Int("videoID", videoID).Msg("Failed to add note")
		RespondError(w, http.StatusBadGateway, "Failed to add note")
		return
	}

	RespondJSON(w, http.StatusCreated, note)
}

func (h *CatalogHandler) currentUserID(r *http.Request) (int, error) {
	creds, err := h.creds.Get(r.Context())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(creds.UserID)
}
