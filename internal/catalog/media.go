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

// MediaInput is the operator-editable part of a media item.
type MediaInput struct {
	Title      string `json:"title" yaml:"title"`
	Kind       string `json:"type" yaml:"type"`
	Content    string `json:"content" yaml:"content"`
	Duration   int    `json:"duration" yaml:"duration"`
	StorageKey string `json:"storage_key,omitempty" yaml:"-"`
}

func (in MediaInput) validate() (models.MediaKind, error) {
	kind := models.ParseMediaKind(in.Kind)
	if !kind.Valid() {
		return "", invalid("type", "must be image, video or news")
	}
	if strings.TrimSpace(in.Title) == "" {
		return "", invalid("title", "required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return "", invalid("content", "required")
	}
	if in.Duration < 0 {
		return "", invalid("duration", "must not be negative")
	}
	return kind, nil
}

// ListMedia returns every media item, newest first.
func (s *Service) ListMedia(ctx context.Context) ([]models.MediaItem, error) {
	var items []models.MediaItem
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// GetMedia returns one media item.
func (s *Service) GetMedia(ctx context.Context, id string) (models.MediaItem, error) {
	var item models.MediaItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return models.MediaItem{}, notFound(err)
	}
	return item, nil
}

// CreateMedia validates and stores a new media item.
func (s *Service) CreateMedia(ctx context.Context, in MediaInput) (models.MediaItem, error) {
	kind, err := in.validate()
	if err != nil {
		return models.MediaItem{}, err
	}
	item := models.MediaItem{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(in.Title),
		Kind:       kind,
		Content:    strings.TrimSpace(in.Content),
		Duration:   in.Duration,
		StorageKey: in.StorageKey,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return models.MediaItem{}, fmt.Errorf("create media: %w", err)
	}

	s.logger.Info().Str("media_id", item.ID).Str("type", string(kind)).Msg("media created")
	s.publish(events.EventMediaCreated, events.Payload{"media_id": item.ID})
	return item, nil
}

// UpdateMedia replaces the editable fields of a media item. Playlists that
// contain it keep their timestamps, so running viewers pick the change up
// only when their playlist next changes.
func (s *Service) UpdateMedia(ctx context.Context, id string, in MediaInput) (models.MediaItem, error) {
	kind, err := in.validate()
	if err != nil {
		return models.MediaItem{}, err
	}
	item, err := s.GetMedia(ctx, id)
	if err != nil {
		return models.MediaItem{}, err
	}

	item.Title = strings.TrimSpace(in.Title)
	item.Kind = kind
	item.Content = strings.TrimSpace(in.Content)
	item.Duration = in.Duration
	if in.StorageKey != "" {
		item.StorageKey = in.StorageKey
	}
	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return models.MediaItem{}, fmt.Errorf("update media: %w", err)
	}

	s.publish(events.EventMediaUpdated, events.Payload{"media_id": item.ID})
	return item, nil
}

// DeleteMedia removes a media item and its playlist associations. Every
// playlist that lost an entry is marked as changed.
func (s *Service) DeleteMedia(ctx context.Context, id string) (models.MediaItem, error) {
	item, err := s.GetMedia(ctx, id)
	if err != nil {
		return models.MediaItem{}, err
	}

	var affected []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlaylistMedia{}).
			Where("media_id = ?", id).
			Distinct().
			Pluck("playlist_id", &affected).Error; err != nil {
			return fmt.Errorf("find playlists: %w", err)
		}
		if err := tx.Where("media_id = ?", id).Delete(&models.PlaylistMedia{}).Error; err != nil {
			return fmt.Errorf("delete associations: %w", err)
		}
		if err := s.bumpPlaylists(tx, affected); err != nil {
			return err
		}
		if err := tx.Delete(&models.MediaItem{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete media: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.MediaItem{}, err
	}

	s.logger.Info().Str("media_id", id).Int("playlists", len(affected)).Msg("media deleted")
	s.publish(events.EventMediaDeleted, events.Payload{"media_id": id})
	for _, pid := range affected {
		s.publish(events.EventPlaylistUpdated, events.Payload{"playlist_id": pid})
	}
	return item, nil
}
