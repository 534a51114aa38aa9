/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

// PlaylistInput is the operator-editable part of a playlist.
type PlaylistInput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func (in PlaylistInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	return nil
}

// PlaylistSummary is a playlist with its entry count.
type PlaylistSummary struct {
	models.Playlist
	ItemCount int `json:"item_count"`
}

// PlaylistItem is one entry of a playlist with its media.
type PlaylistItem struct {
	Position int              `json:"position"`
	Media    models.MediaItem `json:"media"`
}

// PlaylistDetail is a playlist with its entries in position order.
type PlaylistDetail struct {
	models.Playlist
	Items []PlaylistItem `json:"items"`
}

// ListPlaylists returns every playlist ordered by name.
func (s *Service) ListPlaylists(ctx context.Context) ([]PlaylistSummary, error) {
	var playlists []models.Playlist
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&playlists).Error; err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	var counts []struct {
		PlaylistID string
		N          int
	}
	if err := s.db.WithContext(ctx).Model(&models.PlaylistMedia{}).
		Select("playlist_id, COUNT(*) AS n").
		Group("playlist_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count playlist media: %w", err)
	}
	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.PlaylistID] = c.N
	}

	out := make([]PlaylistSummary, len(playlists))
	for i, p := range playlists {
		out[i] = PlaylistSummary{Playlist: p, ItemCount: byID[p.ID]}
	}
	return out, nil
}

// GetPlaylist returns a playlist with its media. Associations whose media
// no longer exists are left out.
func (s *Service) GetPlaylist(ctx context.Context, id string) (PlaylistDetail, error) {
	var p models.Playlist
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return PlaylistDetail{}, notFound(err)
	}

	var entries []models.PlaylistMedia
	if err := s.db.WithContext(ctx).
		Where("playlist_id = ?", id).
		Order("position ASC, created_at ASC").
		Find(&entries).Error; err != nil {
		return PlaylistDetail{}, fmt.Errorf("list entries: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.MediaID)
	}
	var media []models.MediaItem
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&media).Error; err != nil {
			return PlaylistDetail{}, fmt.Errorf("load media: %w", err)
		}
	}
	byID := make(map[string]models.MediaItem, len(media))
	for _, m := range media {
		byID[m.ID] = m
	}

	detail := PlaylistDetail{Playlist: p, Items: make([]PlaylistItem, 0, len(entries))}
	for _, e := range entries {
		if m, ok := byID[e.MediaID]; ok {
			detail.Items = append(detail.Items, PlaylistItem{Position: e.Position, Media: m})
		}
	}
	return detail, nil
}

// CreatePlaylist stores an empty playlist.
func (s *Service) CreatePlaylist(ctx context.Context, in PlaylistInput) (models.Playlist, error) {
	if err := in.validate(); err != nil {
		return models.Playlist{}, err
	}
	p := models.Playlist{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return models.Playlist{}, fmt.Errorf("create playlist: %w", err)
	}
	s.logger.Info().Str("playlist_id", p.ID).Msg("playlist created")
	return p, nil
}

// UpdatePlaylist changes name and description.
func (s *Service) UpdatePlaylist(ctx context.Context, id string, in PlaylistInput) (models.Playlist, error) {
	if err := in.validate(); err != nil {
		return models.Playlist{}, err
	}
	var p models.Playlist
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return models.Playlist{}, notFound(err)
	}
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	if err := s.db.WithContext(ctx).Save(&p).Error; err != nil {
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}
	s.publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": p.ID})
	return p, nil
}

// DeletePlaylist removes a playlist and its associations and unbinds every
// device that played it.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	var unbound []models.Device
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Playlist
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("playlist_id = ?", id).Find(&unbound).Error; err != nil {
			return fmt.Errorf("find devices: %w", err)
		}
		if err := tx.Model(&models.Device{}).
			Where("playlist_id = ?", id).
			Updates(map[string]any{"playlist_id": nil, "updated_at": s.now()}).Error; err != nil {
			return fmt.Errorf("unbind devices: %w", err)
		}
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistMedia{}).Error; err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := tx.Delete(&models.Playlist{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete playlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("playlist_id", id).Int("devices_unbound", len(unbound)).Msg("playlist deleted")
	s.publish(events.EventPlaylistDeleted, events.Payload{"playlist_id": id})
	for _, d := range unbound {
		s.publish(events.EventDeviceUpdated, events.Payload{"device_id": d.ID, "token": d.Token})
	}
	return nil
}

// AddMedia appends a media item at the next position.
func (s *Service) AddMedia(ctx context.Context, playlistID, mediaID string) (models.PlaylistMedia, error) {
	var entry models.PlaylistMedia
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Playlist{}, "id = ?", playlistID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.First(&models.MediaItem{}, "id = ?", mediaID).Error; err != nil {
			return notFound(err)
		}

		var next int
		if err := tx.Model(&models.PlaylistMedia{}).
			Where("playlist_id = ?", playlistID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return fmt.Errorf("next position: %w", err)
		}

		entry = models.PlaylistMedia{
			ID:         uuid.NewString(),
			PlaylistID: playlistID,
			MediaID:    mediaID,
			Position:   next,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("add media: %w", err)
		}
		return s.bumpPlaylists(tx, []string{playlistID})
	})
	if err != nil {
		return models.PlaylistMedia{}, err
	}

	s.publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": playlistID})
	return entry, nil
}

// RemoveMedia removes every occurrence of a media item from a playlist.
func (s *Service) RemoveMedia(ctx context.Context, playlistID, mediaID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("playlist_id = ? AND media_id = ?", playlistID, mediaID).Delete(&models.PlaylistMedia{})
		if res.Error != nil {
			return fmt.Errorf("remove media: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return s.bumpPlaylists(tx, []string{playlistID})
	})
	if err != nil {
		return err
	}

	s.publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": playlistID})
	return nil
}

// Reorder rewrites the playlist so it holds exactly mediaIDs in the given
// order. Every id must refer to existing media.
func (s *Service) Reorder(ctx context.Context, playlistID string, mediaIDs []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Playlist{}, "id = ?", playlistID).Error; err != nil {
			return notFound(err)
		}

		if len(mediaIDs) > 0 {
			unique := make(map[string]struct{}, len(mediaIDs))
			for _, id := range mediaIDs {
				unique[id] = struct{}{}
			}
			ids := make([]string, 0, len(unique))
			for id := range unique {
				ids = append(ids, id)
			}
			var found int64
			if err := tx.Model(&models.MediaItem{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
				return fmt.Errorf("check media: %w", err)
			}
			if int(found) != len(ids) {
				return invalid("media_ids", "unknown media id")
			}
		}

		if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.PlaylistMedia{}).Error; err != nil {
			return fmt.Errorf("clear entries: %w", err)
		}
		if len(mediaIDs) > 0 {
			entries := make([]models.PlaylistMedia, len(mediaIDs))
			for i, id := range mediaIDs {
				entries[i] = models.PlaylistMedia{
					ID:         uuid.NewString(),
					PlaylistID: playlistID,
					MediaID:    id,
					Position:   i,
				}
			}
			if err := tx.Create(&entries).Error; err != nil {
				return fmt.Errorf("write entries: %w", err)
			}
		}
		return s.bumpPlaylists(tx, []string{playlistID})
	})
	if err != nil {
		return err
	}

	s.publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": playlistID})
	return nil
}
