/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package web serves the viewer page and its push channel.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/playout"
)

// Sessions opens and closes playback sessions for viewer connections.
type Sessions interface {
	Open(ctx context.Context, token, directVideo string, renderer playout.Renderer) (*playout.Session, error)
	Close(id string)
}

// Handler provides the viewer entry surface.
type Handler struct {
	sessions Sessions
	page     *template.Template
	static   fs.FS
	logger   zerolog.Logger
}

// viewerPage is the data the viewer template renders.
type viewerPage struct {
	Token string
	Video string
}

// NewHandler parses the embedded viewer page.
func NewHandler(sessions Sessions, logger zerolog.Logger) (*Handler, error) {
	page, err := template.ParseFS(TemplateFS, "templates/viewer.html")
	if err != nil {
		return nil, fmt.Errorf("parse viewer template: %w", err)
	}
	static, err := fs.Sub(StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static assets: %w", err)
	}
	return &Handler{
		sessions: sessions,
		page:     page,
		static:   static,
		logger:   logger.With().Str("component", "web").Logger(),
	}, nil
}

// Routes registers the viewer routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/view/{token}", h.handleViewer)
	r.Get("/view/{token}/ws", h.handleViewerSocket)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.static))))
}

func (h *Handler) handleViewer(w http.ResponseWriter, r *http.Request) {
	data := viewerPage{
		Token: chi.URLParam(r, "token"),
		Video: r.URL.Query().Get("video"),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error().Err(err).Msg("render viewer page")
	}
}
