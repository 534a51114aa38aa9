/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_signage/internal/models"
)

// Manifest declares content to be upserted in one pass. Media are matched by
// title, playlists and devices by name.
type Manifest struct {
	Media     []ManifestMedia    `yaml:"media"`
	Playlists []ManifestPlaylist `yaml:"playlists"`
	Devices   []ManifestDevice   `yaml:"devices"`
}

// ManifestMedia is a media item. Ref is an optional manifest-local handle
// playlists can use instead of the title.
type ManifestMedia struct {
	Ref        string `yaml:"ref"`
	MediaInput `yaml:",inline"`
}

// ManifestPlaylist lists its items by media ref or title, in play order.
type ManifestPlaylist struct {
	PlaylistInput `yaml:",inline"`
	Items         []string `yaml:"items"`
}

// ManifestDevice binds a device to a playlist by name. An empty playlist
// leaves the device unbound.
type ManifestDevice struct {
	DeviceInput `yaml:",inline"`
	Playlist    string `yaml:"playlist"`
}

// SyncReport counts what ApplyManifest changed.
type SyncReport struct {
	MediaCreated     int
	MediaUpdated     int
	PlaylistsCreated int
	PlaylistsUpdated int
	DevicesCreated   int
	DevicesUpdated   int
	// NewDevices maps the name of each created device to its token.
	NewDevices map[string]string
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

// ApplyManifest upserts everything in m. Records that already match are left
// untouched so running viewers are not disturbed by a repeated sync.
func (s *Service) ApplyManifest(ctx context.Context, m Manifest) (SyncReport, error) {
	report := SyncReport{NewDevices: make(map[string]string)}
	if err := s.checkManifest(ctx, m); err != nil {
		return report, err
	}

	mediaIDs := make(map[string]string)
	for i, mm := range m.Media {
		item, created, changed, err := s.upsertMedia(ctx, mm.MediaInput)
		if err != nil {
			return report, fmt.Errorf("media[%d] %q: %w", i, mm.Title, err)
		}
		switch {
		case created:
			report.MediaCreated++
		case changed:
			report.MediaUpdated++
		}
		mediaIDs[strings.TrimSpace(mm.Title)] = item.ID
		if mm.Ref != "" {
			mediaIDs[mm.Ref] = item.ID
		}
	}

	playlistIDs := make(map[string]string)
	for i, mp := range m.Playlists {
		items := make([]string, 0, len(mp.Items))
		for _, ref := range mp.Items {
			id, ok := mediaIDs[ref]
			if !ok {
				return report, fmt.Errorf("playlist[%d] %q: %w", i, mp.Name, invalid("items", "unknown media "+ref))
			}
			items = append(items, id)
		}
		id, created, changed, err := s.upsertPlaylist(ctx, mp.PlaylistInput, items)
		if err != nil {
			return report, fmt.Errorf("playlist[%d] %q: %w", i, mp.Name, err)
		}
		switch {
		case created:
			report.PlaylistsCreated++
		case changed:
			report.PlaylistsUpdated++
		}
		playlistIDs[strings.TrimSpace(mp.Name)] = id
	}

	for i, md := range m.Devices {
		playlistID := ""
		if md.Playlist != "" {
			id, ok := playlistIDs[md.Playlist]
			if !ok {
				var p models.Playlist
				if err := s.db.WithContext(ctx).First(&p, "name = ?", md.Playlist).Error; err != nil {
					return report, fmt.Errorf("device[%d] %q: playlist %q: %w", i, md.Name, md.Playlist, notFound(err))
				}
				id = p.ID
			}
			playlistID = id
		}
		d, created, changed, err := s.upsertDevice(ctx, md.DeviceInput, playlistID)
		if err != nil {
			return report, fmt.Errorf("device[%d] %q: %w", i, md.Name, err)
		}
		switch {
		case created:
			report.DevicesCreated++
			report.NewDevices[d.Name] = d.Token
		case changed:
			report.DevicesUpdated++
		}
	}

	s.logger.Info().
		Int("media_created", report.MediaCreated).
		Int("media_updated", report.MediaUpdated).
		Int("playlists_created", report.PlaylistsCreated).
		Int("playlists_updated", report.PlaylistsUpdated).
		Int("devices_created", report.DevicesCreated).
		Int("devices_updated", report.DevicesUpdated).
		Msg("manifest applied")
	return report, nil
}

// checkManifest rejects a manifest before anything is written: every record
// must validate, every playlist item must name a manifest media, and every
// device playlist must exist in the manifest or the database.
func (s *Service) checkManifest(ctx context.Context, m Manifest) error {
	known := make(map[string]bool)
	for i, mm := range m.Media {
		if _, err := mm.validate(); err != nil {
			return fmt.Errorf("media[%d] %q: %w", i, mm.Title, err)
		}
		known[strings.TrimSpace(mm.Title)] = true
		if mm.Ref != "" {
			known[mm.Ref] = true
		}
	}

	playlists := make(map[string]bool)
	for i, mp := range m.Playlists {
		if err := mp.validate(); err != nil {
			return fmt.Errorf("playlist[%d] %q: %w", i, mp.Name, err)
		}
		for _, ref := range mp.Items {
			if !known[ref] {
				return fmt.Errorf("playlist[%d] %q: %w", i, mp.Name, invalid("items", "unknown media "+ref))
			}
		}
		playlists[strings.TrimSpace(mp.Name)] = true
	}

	for i, md := range m.Devices {
		if err := md.validate(); err != nil {
			return fmt.Errorf("device[%d] %q: %w", i, md.Name, err)
		}
		if md.Playlist == "" || playlists[md.Playlist] {
			continue
		}
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Playlist{}).Where("name = ?", md.Playlist).Count(&n).Error; err != nil {
			return fmt.Errorf("device[%d] %q: %w", i, md.Name, err)
		}
		if n == 0 {
			return fmt.Errorf("device[%d] %q: %w", i, md.Name, invalid("playlist", "unknown playlist "+md.Playlist))
		}
	}
	return nil
}

func (s *Service) upsertMedia(ctx context.Context, in MediaInput) (models.MediaItem, bool, bool, error) {
	in.StorageKey = ""
	var existing models.MediaItem
	err := s.db.WithContext(ctx).First(&existing, "title = ?", strings.TrimSpace(in.Title)).Error
	if err != nil {
		if err = notFound(err); !errors.Is(err, ErrNotFound) {
			return models.MediaItem{}, false, false, err
		}
		item, err := s.CreateMedia(ctx, in)
		return item, err == nil, false, err
	}

	if existing.Kind == models.ParseMediaKind(in.Kind) &&
		existing.Content == strings.TrimSpace(in.Content) &&
		existing.Duration == in.Duration {
		return existing, false, false, nil
	}
	item, err := s.UpdateMedia(ctx, existing.ID, in)
	return item, false, err == nil, err
}

func (s *Service) upsertPlaylist(ctx context.Context, in PlaylistInput, items []string) (string, bool, bool, error) {
	var existing models.Playlist
	err := s.db.WithContext(ctx).First(&existing, "name = ?", strings.TrimSpace(in.Name)).Error
	created := false
	if err != nil {
		if err = notFound(err); !errors.Is(err, ErrNotFound) {
			return "", false, false, err
		}
		existing, err = s.CreatePlaylist(ctx, in)
		if err != nil {
			return "", false, false, err
		}
		created = true
	}

	changed := false
	if !created && existing.Description != in.Description {
		if _, err := s.UpdatePlaylist(ctx, existing.ID, in); err != nil {
			return "", false, false, err
		}
		changed = true
	}

	detail, err := s.GetPlaylist(ctx, existing.ID)
	if err != nil {
		return "", false, false, err
	}
	current := make([]string, len(detail.Items))
	for i, it := range detail.Items {
		current[i] = it.Media.ID
	}
	if !slices.Equal(current, items) {
		if err := s.Reorder(ctx, existing.ID, items); err != nil {
			return "", false, false, err
		}
		changed = true
	}
	return existing.ID, created, changed && !created, nil
}

func (s *Service) upsertDevice(ctx context.Context, in DeviceInput, playlistID string) (models.Device, bool, bool, error) {
	var existing models.Device
	err := s.db.WithContext(ctx).First(&existing, "name = ?", strings.TrimSpace(in.Name)).Error
	created := false
	if err != nil {
		if err = notFound(err); !errors.Is(err, ErrNotFound) {
			return models.Device{}, false, false, err
		}
		existing, err = s.CreateDevice(ctx, in)
		if err != nil {
			return models.Device{}, false, false, err
		}
		created = true
	}

	changed := false
	if !created && existing.Description != in.Description {
		if existing, err = s.UpdateDevice(ctx, existing.ID, in); err != nil {
			return models.Device{}, false, false, err
		}
		changed = true
	}
	if existing.BoundPlaylist() != playlistID {
		if existing, err = s.AssignPlaylist(ctx, existing.ID, playlistID); err != nil {
			return models.Device{}, false, false, err
		}
		changed = true
	}
	return existing, created, changed && !created, nil
}
