/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_signage/internal/catalog"
	"github.com/friendsincode/grimnir_signage/internal/media"
)

func (a *API) handleMediaList(w http.ResponseWriter, r *http.Request) {
	items, err := a.catalog.ListMedia(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *API) handleMediaGet(w http.ResponseWriter, r *http.Request) {
	item, err := a.catalog.GetMedia(r.Context(), chi.URLParam(r, "mediaID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleMediaCreate(w http.ResponseWriter, r *http.Request) {
	var in catalog.MediaInput
	if !decodeJSON(w, r, &in) {
		return
	}
	// Stored files only enter through the upload endpoint.
	in.StorageKey = ""
	item, err := a.catalog.CreateMedia(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleMediaUpdate(w http.ResponseWriter, r *http.Request) {
	var in catalog.MediaInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.StorageKey = ""
	item, err := a.catalog.UpdateMedia(r.Context(), chi.URLParam(r, "mediaID"), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
	item, err := a.catalog.DeleteMedia(r.Context(), chi.URLParam(r, "mediaID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if item.StorageKey != "" && a.media != nil {
		if err := a.media.Delete(r.Context(), item.StorageKey); err != nil {
			a.logger.Warn().Err(err).Str("media_id", item.ID).Msg("stored file left behind")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMediaUpload stores an image or video file and creates the media item
// pointing at it.
func (a *API) handleMediaUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	duration := 0
	if v := strings.TrimSpace(r.FormValue("duration")); v != "" {
		duration, err = strconv.Atoi(v)
		if err != nil || duration < 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration")
			return
		}
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	upload, err := a.media.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			writeError(w, http.StatusUnsupportedMediaType, "unsupported_type")
			return
		}
		a.logger.Error().Err(err).Msg("upload failed")
		writeError(w, http.StatusInternalServerError, "storage_error")
		return
	}

	item, err := a.catalog.CreateMedia(r.Context(), catalog.MediaInput{
		Title:      title,
		Kind:       string(upload.Kind),
		Content:    upload.URL,
		Duration:   duration,
		StorageKey: upload.Key,
	})
	if err != nil {
		if delErr := a.media.Delete(r.Context(), upload.Key); delErr != nil {
			a.logger.Warn().Err(delErr).Str("key", upload.Key).Msg("cleanup after failed create")
		}
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
