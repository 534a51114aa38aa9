/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/cache"
	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/rs/zerolog"
)

// CachedStore serves media snapshots from Redis. Devices, playlist metadata
// and entries always go to the inner store because change detection depends
// on them being current.
type CachedStore struct {
	inner  Store
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewCachedStore decorates inner with the media cache.
func NewCachedStore(inner Store, c *cache.Cache, logger zerolog.Logger) *CachedStore {
	return &CachedStore{inner: inner, cache: c, logger: logger.With().Str("component", "store_cache").Logger()}
}

func (s *CachedStore) DeviceByToken(ctx context.Context, token string) (content.Device, error) {
	return s.inner.DeviceByToken(ctx, token)
}

func (s *CachedStore) UpdateDeviceLastActive(ctx context.Context, deviceID string, at time.Time) error {
	return s.inner.UpdateDeviceLastActive(ctx, deviceID, at)
}

func (s *CachedStore) PlaylistByID(ctx context.Context, playlistID string) (content.PlaylistMeta, error) {
	return s.inner.PlaylistByID(ctx, playlistID)
}

func (s *CachedStore) PlaylistEntries(ctx context.Context, playlistID string) ([]content.Entry, error) {
	return s.inner.PlaylistEntries(ctx, playlistID)
}

func (s *CachedStore) MediaByIDs(ctx context.Context, ids []string) (map[string]content.MediaItem, error) {
	found, missing := s.cache.GetMediaItems(ctx, ids)
	if len(missing) == 0 {
		return found, nil
	}

	fetched, err := s.inner.MediaByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetMediaItems(ctx, fetched); err != nil {
		s.logger.Debug().Err(err).Msg("failed to populate media cache")
	}
	for id, item := range fetched {
		found[id] = item
	}
	return found, nil
}

// InvalidateMedia drops a cached snapshot after the media record changed.
func (s *CachedStore) InvalidateMedia(ctx context.Context, mediaID string) error {
	return s.cache.InvalidateMediaItem(ctx, mediaID)
}
