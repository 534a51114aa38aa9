/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist loads playlists with their media in playback order.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when the playlist record does not exist.
var ErrNotFound = store.ErrNotFound

// Source is the slice of the record store the loader needs.
type Source interface {
	PlaylistByID(ctx context.Context, playlistID string) (content.PlaylistMeta, error)
	PlaylistEntries(ctx context.Context, playlistID string) ([]content.Entry, error)
	MediaByIDs(ctx context.Context, ids []string) (map[string]content.MediaItem, error)
}

// Loader joins playlist metadata, entries and media.
type Loader struct {
	source Source
	logger zerolog.Logger
}

// NewLoader creates a loader over source.
func NewLoader(source Source, logger zerolog.Logger) *Loader {
	return &Loader{source: source, logger: logger.With().Str("component", "playlist_loader").Logger()}
}

// Load returns the playlist with its items in ascending position order.
// Entries pointing at missing media are dropped. An empty result is a valid
// playlist.
func (l *Loader) Load(ctx context.Context, playlistID string) (content.Playlist, error) {
	meta, err := l.source.PlaylistByID(ctx, playlistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return content.Playlist{}, ErrNotFound
		}
		return content.Playlist{}, fmt.Errorf("load playlist %s: %w", playlistID, err)
	}

	entries, err := l.source.PlaylistEntries(ctx, playlistID)
	if err != nil {
		return content.Playlist{}, fmt.Errorf("load entries for %s: %w", playlistID, err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })

	ids := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.MediaID]; ok {
			continue
		}
		seen[e.MediaID] = struct{}{}
		ids = append(ids, e.MediaID)
	}

	media, err := l.source.MediaByIDs(ctx, ids)
	if err != nil {
		return content.Playlist{}, fmt.Errorf("load media for %s: %w", playlistID, err)
	}

	items := make([]content.MediaItem, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		item, ok := media[e.MediaID]
		if !ok {
			dropped++
			continue
		}
		items = append(items, item)
	}
	if dropped > 0 {
		l.logger.Debug().Str("playlist_id", playlistID).Int("dropped", dropped).Msg("skipped entries with missing media")
	}

	return content.Playlist{PlaylistMeta: meta, Items: items}, nil
}
