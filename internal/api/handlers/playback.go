// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/vodvault/vodvault/internal/playback"
)

type PlaybackHandler struct {
	resolver *playback.Resolver
}

func NewPlaybackHandler(resolver *playback.Resolver) *PlaybackHandler {
	return &PlaybackHandler{resolver: resolver}
}

func (h *PlaybackHandler) Routes(r chi.Router) {
	r.Post("/resolve", h.resolve)
}

func (h *PlaybackHandler) resolve(w http.ResponseWriter, r *http.Request) {
	var req playback.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	source, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		var authErr *playback.AuthError
		if errors.As(err, &authErr) {
			log.Warn().Err(err).Str("videoId", req.VimeoID).Msg("Playback authorization failed")
			RespondError(w, http.StatusUnauthorized, "Playback could not be authorized")
			return
		}
		log.Error().Err(err).Msg("Playback resolution failed")
		RespondError(w, http.StatusInternalServerError, "Playback resolution failed")
		return
	}

	RespondJSON(w, http.StatusOK, source)
}
