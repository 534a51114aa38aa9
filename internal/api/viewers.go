/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) handleViewersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.playout.Sessions())
}

// handleViewerRefresh is the remote equivalent of the viewer's refresh button.
func (a *API) handleViewerRefresh(w http.ResponseWriter, r *http.Request) {
	if !a.playout.Refresh(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleViewerSkip(w http.ResponseWriter, r *http.Request) {
	if !a.playout.Skip(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
