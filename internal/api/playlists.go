/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_signage/internal/catalog"
)

type addMediaRequest struct {
	MediaID string `json:"media_id"`
}

type reorderRequest struct {
	MediaIDs []string `json:"media_ids"`
}

func (a *API) handlePlaylistsList(w http.ResponseWriter, r *http.Request) {
	playlists, err := a.catalog.ListPlaylists(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) handlePlaylistsGet(w http.ResponseWriter, r *http.Request) {
	detail, err := a.catalog.GetPlaylist(r.Context(), chi.URLParam(r, "playlistID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handlePlaylistsCreate(w http.ResponseWriter, r *http.Request) {
	var in catalog.PlaylistInput
	if !decodeJSON(w, r, &in) {
		return
	}
	playlist, err := a.catalog.CreatePlaylist(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func (a *API) handlePlaylistsUpdate(w http.ResponseWriter, r *http.Request) {
	var in catalog.PlaylistInput
	if !decodeJSON(w, r, &in) {
		return
	}
	playlist, err := a.catalog.UpdatePlaylist(r.Context(), chi.URLParam(r, "playlistID"), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

func (a *API) handlePlaylistsDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.DeletePlaylist(r.Context(), chi.URLParam(r, "playlistID")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePlaylistAddMedia(w http.ResponseWriter, r *http.Request) {
	var req addMediaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MediaID == "" {
		writeError(w, http.StatusBadRequest, "media_id_required")
		return
	}
	entry, err := a.catalog.AddMedia(r.Context(), chi.URLParam(r, "playlistID"), req.MediaID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (a *API) handlePlaylistRemoveMedia(w http.ResponseWriter, r *http.Request) {
	err := a.catalog.RemoveMedia(r.Context(), chi.URLParam(r, "playlistID"), chi.URLParam(r, "mediaID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePlaylistReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.catalog.Reorder(r.Context(), chi.URLParam(r, "playlistID"), req.MediaIDs); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
