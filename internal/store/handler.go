/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBatchIDs = 500

// Handler serves the record store contract consumed by HTTPClient.
type Handler struct {
	store  Store
	logger zerolog.Logger
}

// NewHandler exposes s over HTTP.
func NewHandler(s Store, logger zerolog.Logger) *Handler {
	return &Handler{store: s, logger: logger.With().Str("component", "store_http").Logger()}
}

// Routes registers the contract endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/devices/by-token/{token}", h.handleDeviceByToken)
	r.Put("/devices/{id}/last-active", h.handleLastActive)
	r.Get("/playlists/{id}", h.handlePlaylist)
	r.Get("/playlists/{id}/entries", h.handleEntries)
	r.Post("/media/batch", h.handleMediaBatch)
}

func (h *Handler) handleDeviceByToken(w http.ResponseWriter, r *http.Request) {
	dev, err := h.store.DeviceByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

func (h *Handler) handleLastActive(w http.ResponseWriter, r *http.Request) {
	var req lastActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	if err := h.store.UpdateDeviceLastActive(r.Context(), chi.URLParam(r, "id"), req.At); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.PlaylistByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.PlaylistEntries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleMediaBatch(w http.ResponseWriter, r *http.Request) {
	var req mediaBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.IDs) > maxBatchIDs {
		writeError(w, http.StatusBadRequest, "too_many_ids")
		return
	}

	found, err := h.store.MediaByIDs(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, err)
		return
	}

	// Echo request order so responses are stable
	items := make([]any, 0, len(found))
	for _, id := range req.IDs {
		if item, ok := found[id]; ok {
			items = append(items, item)
			delete(found, id)
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	h.logger.Error().Err(err).Msg("record store request failed")
	writeError(w, http.StatusInternalServerError, "store_error")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
