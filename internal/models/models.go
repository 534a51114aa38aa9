/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// MediaKind enumerates the kinds of content an operator can create.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
	MediaNews  MediaKind = "news"
)

// Valid reports whether k is one of the known kinds.
func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaNews:
		return true
	}
	return false
}

// ParseMediaKind normalizes user input into a MediaKind.
func ParseMediaKind(s string) MediaKind {
	return MediaKind(strings.ToLower(strings.TrimSpace(s)))
}

// MediaItem is a single piece of displayable content. Content holds a URL for
// image and video, or raw markup for news.
type MediaItem struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title      string    `gorm:"index" json:"title"`
	Kind       MediaKind `gorm:"column:type;type:varchar(16);index" json:"type"`
	Content    string    `gorm:"type:text" json:"content"`
	Duration   int       `json:"duration"` // seconds
	StorageKey string    `json:"storage_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (MediaItem) TableName() string { return "media" }

// Playlist is an ordered collection of media. UpdatedAt is bumped on every
// membership or order change so players notice the difference.
type Playlist struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string    `gorm:"index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Playlist) TableName() string { return "playlists" }

// PlaylistMedia places a media item at a position within a playlist.
type PlaylistMedia struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PlaylistID string    `gorm:"type:varchar(36);index:idx_playlist_position,priority:1" json:"playlist_id"`
	MediaID    string    `gorm:"type:varchar(36);index" json:"media_id"`
	Position   int       `gorm:"index:idx_playlist_position,priority:2" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
}

func (PlaylistMedia) TableName() string { return "playlist_media" }

// Device is a registered display endpoint. Token is generated once at
// provisioning and never regenerated.
type Device struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name        string     `gorm:"index" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	Token       string     `gorm:"type:varchar(64);uniqueIndex" json:"token"`
	PlaylistID  *string    `gorm:"type:varchar(36);index" json:"playlist_id"`
	LastActive  *time.Time `json:"last_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Device) TableName() string { return "devices" }

// BoundPlaylist returns the bound playlist id, or "" when the device is unbound.
func (d Device) BoundPlaylist() string {
	if d.PlaylistID == nil {
		return ""
	}
	return *d.PlaylistID
}
