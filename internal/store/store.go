/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package store is the record store client used by the device resolver and
// playlist loader.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
)

// ErrNotFound is returned when a record does not exist or is malformed.
var ErrNotFound = errors.New("store: not found")

// Store is the read side the playback engine depends on.
type Store interface {
	// DeviceByToken looks up a device by exact token match.
	DeviceByToken(ctx context.Context, token string) (content.Device, error)
	// UpdateDeviceLastActive records that the device's viewer resolved itself.
	UpdateDeviceLastActive(ctx context.Context, deviceID string, at time.Time) error
	// PlaylistByID returns playlist metadata.
	PlaylistByID(ctx context.Context, playlistID string) (content.PlaylistMeta, error)
	// PlaylistEntries returns associations in ascending position order.
	PlaylistEntries(ctx context.Context, playlistID string) ([]content.Entry, error)
	// MediaByIDs returns the media that exist among ids, keyed by id.
	MediaByIDs(ctx context.Context, ids []string) (map[string]content.MediaItem, error)
}
