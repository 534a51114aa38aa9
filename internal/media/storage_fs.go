/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// FilesystemStorage implements Storage using local filesystem.
type FilesystemStorage struct {
	rootDir   string
	urlPrefix string
	logger    zerolog.Logger
}

// NewFilesystemStorage creates a filesystem-based storage backend. Files are
// served under urlPrefix.
func NewFilesystemStorage(rootDir, urlPrefix string, logger zerolog.Logger) *FilesystemStorage {
	return &FilesystemStorage{
		rootDir:   rootDir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		logger:    logger,
	}
}

// Root returns the directory files are written under.
func (fs *FilesystemStorage) Root() string { return fs.rootDir }

func (fs *FilesystemStorage) fullPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(fs.rootDir, filepath.FromSlash(clean)), nil
}

// Store saves a file to the local filesystem.
func (fs *FilesystemStorage) Store(ctx context.Context, key string, body io.Reader, _ string) error {
	fullPath, err := fs.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	dest, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dest, body); err != nil {
		dest.Close()
		os.Remove(fullPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("close file: %w", err)
	}

	fs.logger.Debug().Str("path", fullPath).Str("key", key).Msg("filesystem storage: file stored")
	return nil
}

// Delete removes a file from the filesystem. Missing files are not an error.
func (fs *FilesystemStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := fs.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file: %w", err)
	}
	fs.logger.Debug().Str("path", fullPath).Msg("filesystem storage: file deleted")
	return nil
}

// URL returns the path the server exposes the file under.
func (fs *FilesystemStorage) URL(key string) string {
	return fs.urlPrefix + "/" + strings.TrimLeft(key, "/")
}

// CheckAccess verifies the storage directory exists and is accessible.
func (fs *FilesystemStorage) CheckAccess(ctx context.Context) error {
	info, err := os.Stat(fs.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("media root directory does not exist: %s", fs.rootDir)
		}
		return fmt.Errorf("cannot access media root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", fs.rootDir)
	}
	return nil
}
