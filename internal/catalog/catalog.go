/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog manages media, playlists and devices for operators.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/models"
	"github.com/friendsincode/grimnir_signage/internal/store"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = store.ErrNotFound

// ValidationError describes rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Service performs catalog mutations and announces them on the bus.
type Service struct {
	db     *gorm.DB
	bus    events.Publisher
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a catalog service. bus may be nil.
func NewService(db *gorm.DB, bus events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload)
}

// bumpPlaylists marks playlists as changed so viewers reload them.
func (s *Service) bumpPlaylists(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&models.Playlist{}).Where("id IN ?", ids).Update("updated_at", s.now()).Error; err != nil {
		return fmt.Errorf("bump playlists: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
