/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/models"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const tracerName = "grimnir_signage/store"

// GormStore reads records from the application database.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewGormStore wraps a database handle.
func NewGormStore(db *gorm.DB, logger zerolog.Logger) *GormStore {
	return &GormStore{db: db, logger: logger.With().Str("component", "store").Logger()}
}

func (s *GormStore) DeviceByToken(ctx context.Context, token string) (content.Device, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "store.device_by_token")
	defer span.End()

	var row models.Device
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.Device{}, ErrNotFound
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return content.Device{}, fmt.Errorf("query device: %w", err)
	}

	dev, err := content.DeviceFromModel(row)
	if err != nil {
		s.logger.Warn().Str("device_id", row.ID).Msg("malformed device record")
		return content.Device{}, ErrNotFound
	}
	span.SetAttributes(attribute.String("device.id", dev.ID))
	return dev, nil
}

func (s *GormStore) UpdateDeviceLastActive(ctx context.Context, deviceID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", deviceID).
		UpdateColumn("last_active", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("update last active: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) PlaylistByID(ctx context.Context, playlistID string) (content.PlaylistMeta, error) {
	var row models.Playlist
	err := s.db.WithContext(ctx).First(&row, "id = ?", playlistID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return content.PlaylistMeta{}, ErrNotFound
	}
	if err != nil {
		return content.PlaylistMeta{}, fmt.Errorf("query playlist: %w", err)
	}
	meta, err := content.PlaylistMetaFromModel(row)
	if err != nil {
		return content.PlaylistMeta{}, ErrNotFound
	}
	return meta, nil
}

func (s *GormStore) PlaylistEntries(ctx context.Context, playlistID string) ([]content.Entry, error) {
	var rows []models.PlaylistMedia
	err := s.db.WithContext(ctx).
		Where("playlist_id = ?", playlistID).
		Order("position ASC").Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query playlist media: %w", err)
	}

	entries := make([]content.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, content.Entry{Position: row.Position, MediaID: row.MediaID})
	}
	return entries, nil
}

func (s *GormStore) MediaByIDs(ctx context.Context, ids []string) (map[string]content.MediaItem, error) {
	out := make(map[string]content.MediaItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "store.media_by_ids", attribute.Int("media.requested", len(ids)))
	defer span.End()

	var rows []models.MediaItem
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("query media: %w", err)
	}
	for _, row := range rows {
		item, err := content.MediaFromModel(row)
		if err != nil {
			continue
		}
		out[item.ID] = item
	}
	return out, nil
}
