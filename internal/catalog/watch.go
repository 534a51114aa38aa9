/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const manifestDebounce = 500 * time.Millisecond

// ApplyManifestFile parses the manifest at path and applies it.
func (s *Service) ApplyManifestFile(ctx context.Context, path string) (SyncReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return SyncReport{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := ParseManifest(f)
	if err != nil {
		return SyncReport{}, err
	}
	return s.ApplyManifest(ctx, m)
}

// WatchManifest applies the manifest at path once, then again every time
// the file is written or replaced, until ctx is done. onApply, when set,
// receives each successful report. A broken edit is logged and the previous
// catalog stays in place.
func (s *Service) WatchManifest(ctx context.Context, path string, onApply func(SyncReport)) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("manifest path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often save by rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	logger := s.logger.With().Str("manifest", path).Logger()
	apply := func() {
		report, err := s.ApplyManifestFile(ctx, path)
		if err != nil {
			logger.Error().Err(err).Msg("manifest sync failed")
			return
		}
		if onApply != nil {
			onApply(report)
		}
	}

	apply()
	logger.Info().Msg("watching manifest")

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce = time.After(manifestDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("manifest watcher error")
		case <-debounce:
			debounce = nil
			apply()
		}
	}
}
