/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media stores uploaded image and video files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

// ErrUnsupportedType is returned for uploads that are neither image nor video.
var ErrUnsupportedType = errors.New("media: unsupported upload type")

// Storage interface abstracts file storage operations.
type Storage interface {
	Store(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
	CheckAccess(ctx context.Context) error
}

// Upload describes a stored file.
type Upload struct {
	Key         string           `json:"storage_key"`
	URL         string           `json:"url"`
	Kind        models.MediaKind `json:"type"`
	ContentType string           `json:"content_type"`
}

// Service manages media file storage.
type Service struct {
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage based on config.
func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	logger = logger.With().Str("component", "media").Logger()

	if cfg.S3Bucket == "" {
		return NewServiceWithStorage(NewFilesystemStorage(cfg.MediaRoot, "/media", logger), logger), nil
	}

	s3cfg := S3Config{
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		Endpoint:        cfg.S3Endpoint,
		PublicBaseURL:   cfg.S3PublicBaseURL,
		UsePathStyle:    cfg.S3UsePathStyle,
	}
	if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
		logger.Warn().Msg("S3 credentials not configured, using the default credential chain")
	}
	s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
	}
	return NewServiceWithStorage(s3Storage, logger), nil
}

// NewServiceWithStorage wraps an existing backend.
func NewServiceWithStorage(storage Storage, logger zerolog.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// Upload stores an uploaded image or video and returns where it lives.
func (s *Service) Upload(ctx context.Context, filename, contentType string, body io.Reader) (Upload, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	contentType = resolveContentType(contentType, ext)
	kind := kindFor(contentType)
	if kind == "" {
		return Upload{}, ErrUnsupportedType
	}

	key := buildMediaPath(string(kind), uuid.NewString(), ext)
	if err := s.storage.Store(ctx, key, body, contentType); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("media store failed")
		return Upload{}, fmt.Errorf("store media: %w", err)
	}

	s.logger.Info().Str("key", key).Str("type", string(kind)).Msg("media stored successfully")
	return Upload{Key: key, URL: s.storage.URL(key), Kind: kind, ContentType: contentType}, nil
}

// Delete removes a media file from storage.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("media delete failed")
		return fmt.Errorf("delete media: %w", err)
	}
	s.logger.Info().Str("key", key).Msg("media deleted successfully")
	return nil
}

// URL returns the accessible URL for a stored media file.
func (s *Service) URL(key string) string {
	return s.storage.URL(key)
}

// CheckStorageAccess verifies that the storage backend is accessible.
func (s *Service) CheckStorageAccess(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}

func resolveContentType(contentType, ext string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		mt, _, _ := mime.ParseMediaType(byExt)
		return mt
	}
	if mt, ok := videoTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// videoTypes covers extensions missing from minimal mime tables.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".mov":  "video/quicktime",
}

func kindFor(contentType string) models.MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo
	default:
		return ""
	}
}

// buildMediaPath spreads files over two levels of directories keyed by id.
func buildMediaPath(kind, mediaID, extension string) string {
	if len(mediaID) < 4 {
		return path.Join(kind, mediaID+extension)
	}
	return path.Join(kind, mediaID[0:2], mediaID[2:4], mediaID+extension)
}
