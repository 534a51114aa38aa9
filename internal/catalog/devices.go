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

	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

// DeviceInput is the operator-editable part of a device.
type DeviceInput struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func (in DeviceInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "required")
	}
	return nil
}

// ListDevices returns every device ordered by name.
func (s *Service) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// GetDevice returns one device.
func (s *Service) GetDevice(ctx context.Context, id string) (models.Device, error) {
	var d models.Device
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return models.Device{}, notFound(err)
	}
	return d, nil
}

// CreateDevice registers a device with a fresh random token.
func (s *Service) CreateDevice(ctx context.Context, in DeviceInput) (models.Device, error) {
	if err := in.validate(); err != nil {
		return models.Device{}, err
	}
	d := models.Device{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Token:       uuid.NewString(),
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return models.Device{}, fmt.Errorf("create device: %w", err)
	}
	s.logger.Info().Str("device_id", d.ID).Msg("device registered")
	return d, nil
}

// UpdateDevice changes name and description. The token never changes.
func (s *Service) UpdateDevice(ctx context.Context, id string, in DeviceInput) (models.Device, error) {
	if err := in.validate(); err != nil {
		return models.Device{}, err
	}
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return models.Device{}, err
	}
	d.Name = strings.TrimSpace(in.Name)
	d.Description = in.Description
	if err := s.db.WithContext(ctx).Save(&d).Error; err != nil {
		return models.Device{}, fmt.Errorf("update device: %w", err)
	}
	s.publishDevice(events.EventDeviceUpdated, d)
	return d, nil
}

// AssignPlaylist binds a device to a playlist. An empty playlistID unbinds.
func (s *Service) AssignPlaylist(ctx context.Context, id, playlistID string) (models.Device, error) {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return models.Device{}, err
	}

	var binding any
	if playlistID != "" {
		if err := s.db.WithContext(ctx).First(&models.Playlist{}, "id = ?", playlistID).Error; err != nil {
			return models.Device{}, notFound(err)
		}
		binding = playlistID
		d.PlaylistID = &playlistID
	} else {
		d.PlaylistID = nil
	}

	d.UpdatedAt = s.now()
	if err := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{"playlist_id": binding, "updated_at": d.UpdatedAt}).Error; err != nil {
		return models.Device{}, fmt.Errorf("assign playlist: %w", err)
	}

	s.logger.Info().Str("device_id", id).Str("playlist_id", playlistID).Msg("device playlist changed")
	s.publishDevice(events.EventDeviceUpdated, d)
	return d, nil
}

// UnassignPlaylist clears the device's binding.
func (s *Service) UnassignPlaylist(ctx context.Context, id string) (models.Device, error) {
	return s.AssignPlaylist(ctx, id, "")
}

// DeleteDevice removes a device. Its viewers fall back to the not-found view
// on their next refresh.
func (s *Service) DeleteDevice(ctx context.Context, id string) error {
	d, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Device{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	s.logger.Info().Str("device_id", id).Msg("device deleted")
	s.publishDevice(events.EventDeviceDeleted, d)
	return nil
}

func (s *Service) publishDevice(eventType events.EventType, d models.Device) {
	s.publish(eventType, events.Payload{
		"device_id":   d.ID,
		"token":       d.Token,
		"playlist_id": d.BoundPlaylist(),
	})
}
