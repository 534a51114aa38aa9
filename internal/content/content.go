/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package content holds the validated records that cross the record store
// boundary into the playback engine. Values are snapshots and are never
// mutated after construction.
package content

import (
	"errors"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/models"
)

// ErrMalformed marks a record that is missing required fields.
var ErrMalformed = errors.New("content: malformed record")

// Kind is the declared media kind. Unknown values are carried through so the
// engine can show a placeholder and move on.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindNews  Kind = "news"
)

// MediaItem is an immutable snapshot of a media record.
type MediaItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Kind        Kind      `json:"type"`
	Content     string    `json:"content"`
	DurationSec int       `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Duration returns the configured display time, or zero when unset.
func (m MediaItem) Duration() time.Duration {
	if m.DurationSec <= 0 {
		return 0
	}
	return time.Duration(m.DurationSec) * time.Second
}

// Validate rejects records without an identifier. Everything else is
// tolerated and handled by the advance policy.
func (m MediaItem) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrMalformed
	}
	return nil
}

// PlaylistMeta is the playlist record without its items.
type PlaylistMeta struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Entry is one playlist association in position order.
type Entry struct {
	Position int    `json:"position"`
	MediaID  string `json:"media_id"`
}

// Playlist is a playlist with its media joined in playback order.
type Playlist struct {
	PlaylistMeta
	Items []MediaItem `json:"items"`
}

// Len returns the number of playable items.
func (p Playlist) Len() int { return len(p.Items) }

// Empty reports whether the playlist has nothing to show.
func (p Playlist) Empty() bool { return len(p.Items) == 0 }

// Fingerprint is the cheap structural identity used for change detection.
type Fingerprint struct {
	PlaylistID string
	UpdatedAt  time.Time
	Count      int
}

// Fingerprint returns the playlist's change-detection identity.
func (p Playlist) Fingerprint() Fingerprint {
	return Fingerprint{PlaylistID: p.ID, UpdatedAt: p.UpdatedAt.UTC(), Count: len(p.Items)}
}

// Differs reports whether o should replace f.
func (f Fingerprint) Differs(o Fingerprint) bool {
	return f.PlaylistID != o.PlaylistID || !f.UpdatedAt.Equal(o.UpdatedAt) || f.Count != o.Count
}

// Device is a snapshot of a registered display endpoint.
type Device struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Token       string     `json:"token"`
	PlaylistID  string     `json:"playlist_id,omitempty"`
	LastActive  *time.Time `json:"last_active,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Bound reports whether the device has a playlist assigned.
func (d Device) Bound() bool { return d.PlaylistID != "" }

// Validate rejects devices without an identifier or token.
func (d Device) Validate() error {
	if strings.TrimSpace(d.ID) == "" || strings.TrimSpace(d.Token) == "" {
		return ErrMalformed
	}
	return nil
}

// MediaFromModel converts a database row into a snapshot.
func MediaFromModel(m models.MediaItem) (MediaItem, error) {
	item := MediaItem{
		ID:          m.ID,
		Title:       m.Title,
		Kind:        Kind(strings.ToLower(strings.TrimSpace(string(m.Kind)))),
		Content:     strings.TrimSpace(m.Content),
		DurationSec: m.Duration,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if item.DurationSec < 0 {
		item.DurationSec = 0
	}
	return item, item.Validate()
}

// PlaylistMetaFromModel converts a database row.
func PlaylistMetaFromModel(p models.Playlist) (PlaylistMeta, error) {
	if strings.TrimSpace(p.ID) == "" {
		return PlaylistMeta{}, ErrMalformed
	}
	return PlaylistMeta{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

// DeviceFromModel converts a database row.
func DeviceFromModel(d models.Device) (Device, error) {
	dev := Device{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Token:       d.Token,
		PlaylistID:  d.BoundPlaylist(),
		LastActive:  d.LastActive,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	return dev, dev.Validate()
}
