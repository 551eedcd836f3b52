// Copyright (c) 2025, the vodvault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vodvault/vodvault/internal/database"
)

type HealthHandler struct {
	db *database.DB
}

func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.liveness)
	r.Get("/readiness", h.readiness)
}

func (h *HealthHandler) liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Conn().PingContext(r.Context()); err != nil {
		RespondError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
