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

type assignRequest struct {
	PlaylistID string `json:"playlist_id"`
}

func (a *API) handleDevicesList(w http.ResponseWriter, r *http.Request) {
	devices, err := a.catalog.ListDevices(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (a *API) handleDevicesGet(w http.ResponseWriter, r *http.Request) {
	device, err := a.catalog.GetDevice(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (a *API) handleDevicesCreate(w http.ResponseWriter, r *http.Request) {
	var in catalog.DeviceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	device, err := a.catalog.CreateDevice(r.Context(), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (a *API) handleDevicesUpdate(w http.ResponseWriter, r *http.Request) {
	var in catalog.DeviceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	device, err := a.catalog.UpdateDevice(r.Context(), chi.URLParam(r, "deviceID"), in)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (a *API) handleDevicesDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.catalog.DeleteDevice(r.Context(), chi.URLParam(r, "deviceID")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDeviceAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	device, err := a.catalog.AssignPlaylist(r.Context(), chi.URLParam(r, "deviceID"), req.PlaylistID)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (a *API) handleDeviceUnassign(w http.ResponseWriter, r *http.Request) {
	device, err := a.catalog.UnassignPlaylist(r.Context(), chi.URLParam(r, "deviceID"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, device)
}
