/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/catalog"
	"github.com/friendsincode/grimnir_signage/internal/media"
	"github.com/friendsincode/grimnir_signage/internal/playout"
	"github.com/friendsincode/grimnir_signage/internal/store"
)

const defaultMaxUploadBytes int64 = 512 << 20

// Options tune the API surface.
type Options struct {
	MaxUploadBytes  int64
	RateLimitPerMin int
}

// API exposes HTTP handlers.
type API struct {
	catalog        *catalog.Service
	media          *media.Service
	playout        *playout.Manager
	records        store.Store
	maxUploadBytes int64
	rateLimit      int
	logger         zerolog.Logger
}

// New creates the API router wrapper. records backs the record store
// contract used by standalone players and may be nil to leave it unmounted.
func New(cat *catalog.Service, mediaSvc *media.Service, manager *playout.Manager, records store.Store, opts Options, logger zerolog.Logger) *API {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &API{
		catalog:        cat,
		media:          mediaSvc,
		playout:        manager,
		records:        records,
		maxUploadBytes: opts.MaxUploadBytes,
		rateLimit:      opts.RateLimitPerMin,
		logger:         logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/media", func(r chi.Router) {
			r.Get("/", a.handleMediaList)
			r.Post("/", a.handleMediaCreate)
			r.Post("/upload", a.handleMediaUpload)
			r.Get("/{mediaID}", a.handleMediaGet)
			r.Put("/{mediaID}", a.handleMediaUpdate)
			r.Delete("/{mediaID}", a.handleMediaDelete)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", a.handlePlaylistsList)
			r.Post("/", a.handlePlaylistsCreate)
			r.Route("/{playlistID}", func(r chi.Router) {
				r.Get("/", a.handlePlaylistsGet)
				r.Put("/", a.handlePlaylistsUpdate)
				r.Delete("/", a.handlePlaylistsDelete)
				r.Post("/media", a.handlePlaylistAddMedia)
				r.Delete("/media/{mediaID}", a.handlePlaylistRemoveMedia)
				r.Put("/order", a.handlePlaylistReorder)
			})
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", a.handleDevicesList)
			r.Post("/", a.handleDevicesCreate)
			r.Route("/{deviceID}", func(r chi.Router) {
				r.Get("/", a.handleDevicesGet)
				r.Put("/", a.handleDevicesUpdate)
				r.Delete("/", a.handleDevicesDelete)
				r.Put("/playlist", a.handleDeviceAssign)
				r.Delete("/playlist", a.handleDeviceUnassign)
			})
		})

		r.Route("/viewers", func(r chi.Router) {
			r.Get("/", a.handleViewersList)
			r.Post("/{sessionID}/refresh", a.handleViewerRefresh)
			r.Post("/{sessionID}/skip", a.handleViewerSkip)
		})

		if a.records != nil {
			r.Route("/store", func(r chi.Router) {
				if a.rateLimit > 0 {
					r.Use(rateLimit(a.rateLimit, time.Minute))
				}
				store.NewHandler(a.records, a.logger).Routes(r)
			})
		}
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if a.media != nil {
		if err := a.media.CheckStorageAccess(r.Context()); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// fail maps service errors onto response codes.
func (a *API) fail(w http.ResponseWriter, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "validation_failed",
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "db_error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
