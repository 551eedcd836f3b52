// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/offline"
)

type OfflineHandler struct {
	scanner   *offline.Scanner
	downloads *offline.Manager
}

func NewOfflineHandler(scanner *offline.Scanner, downloads *offline.Manager) *OfflineHandler {
	return &OfflineHandler{
		scanner:   scanner,
		downloads: downloads,
	}
}

func (h *OfflineHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Delete("/{filename}", h.delete)
	r.Get("/renditions/{vimeoID}", h.renditions)
	r.Get("/downloads", h.activeDownloads)
	r.Post("/downloads", h.download)
}

// list scans the download directory and returns the surviving artifacts,
// newest first. Expired files are removed as a side effect of the scan.
func (h *OfflineHandler) list(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.scanner.Scan(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Offline scan failed")
		RespondError(w, http.StatusInternalServerError, "Failed to scan offline storage")
		return
	}

	RespondJSON(w, http.StatusOK, artifacts)
}

func (h *OfflineHandler) delete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if err := h.scanner.Delete(r.Context(), filename); err != nil {
		var parseErr *offline.ParseError
		if errors.As(err, &parseErr) {
			RespondError(w, http.StatusBadRequest, "Invalid artifact filename")
			return
		}
		log.Error().Err(err).Str("filename", filename).Msg("Failed to delete offline artifact")
		RespondError(w, http.StatusInternalServerError, "Failed to delete offline artifact")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (h *OfflineHandler) renditions(w http.ResponseWriter, r *http.Request) {
	vimeoID := chi.URLParam(r, "vimeoID")

	renditions, err := h.downloads.Renditions(r.Context(), vimeoID)
	if err != nil {
		log.Error().Err(err).Str("vimeoID", vimeoID).Msg("Failed to fetch renditions")
		RespondError(w, http.StatusBadGateway, "Failed to fetch renditions")
		return
	}

	RespondJSON(w, http.StatusOK, renditions)
}

func (h *OfflineHandler) activeDownloads(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.downloads.Active())
}

type downloadRequest struct {
	VimeoID         string `json:"vimeoId"`
	Link            string `json:"link"`
	ResolutionLabel string `json:"resolutionLabel"`
}

func (h *OfflineHandler) download(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.VimeoID == "" || req.Link == "" || req.ResolutionLabel == "" {
		RespondError(w, http.StatusBadRequest, "vimeoId, link and resolutionLabel are required")
		return
	}

	job, err := h.downloads.Download(r.Context(), req.VimeoID, req.Link, req.ResolutionLabel)
	if err != nil {
		if errors.Is(err, offline.ErrDownloadInFlight) {
			RespondError(w, http.StatusConflict, "Download already in progress for this link")
			return
		}
		var dlErr *offline.DownloadError
		if errors.As(err, &dlErr) {
			log.Error().Err(err).Str("vimeoId", req.VimeoID).Msg("Download transfer failed")
			RespondError(w, http.StatusBadGateway, "Download failed")
			return
		}
		log.Error().Err(err).Str("vimeoId", req.VimeoID).Msg("Download failed")
		RespondError(w, http.StatusInternalServerError, "Download failed")
		return
	}

	RespondJSON(w, http.StatusCreated, job)
}
