/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_signage/internal/cache"
	"github.com/friendsincode/grimnir_signage/internal/catalog"
	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/db"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert media, playlists and devices from a YAML manifest",
	Long:  "Apply a YAML manifest to the database. Media are matched by title, playlists and devices by name; unchanged records are left alone.",
	RunE:  runSync,
}

var (
	syncFile  string
	syncWatch bool
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncFile, "file", "f", "", "Path to the manifest (required)")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "Keep running and re-apply the manifest whenever it changes")
	_ = syncCmd.MarkFlagRequired("file")
}

func runSync(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(database)
	if err := db.Migrate(database); err != nil {
		return err
	}

	// Running servers learn about changes on their next refresh tick. Edits
	// made here publish no events, so their cached media snapshots are
	// dropped instead.
	svc := catalog.NewService(database, nil, logger)
	out := cmd.OutOrStdout()
	applied := func(ctx context.Context, report catalog.SyncReport) {
		printReport(out, report)
		if report.MediaUpdated > 0 {
			if err := flushMediaCache(ctx, cfg, logger); err != nil {
				logger.Warn().Err(err).Msg("failed to flush media cache")
			}
		}
	}

	if syncWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return svc.WatchManifest(ctx, syncFile, func(report catalog.SyncReport) {
			applied(ctx, report)
		})
	}

	report, err := svc.ApplyManifestFile(cmd.Context(), syncFile)
	if err != nil {
		return err
	}
	applied(cmd.Context(), report)
	return nil
}

// flushMediaCache drops every cached media snapshot when the cache is
// enabled. An unreachable Redis is not an error.
func flushMediaCache(ctx context.Context, c *config.Config, logger zerolog.Logger) error {
	if !c.CacheEnabled {
		return nil
	}
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = c.RedisAddr
	cacheCfg.RedisPassword = c.RedisPassword
	cacheCfg.RedisDB = c.RedisDB
	mediaCache, err := cache.New(cacheCfg, logger)
	if err != nil {
		return err
	}
	defer mediaCache.Close()
	return mediaCache.Flush(ctx)
}

func printReport(out io.Writer, report catalog.SyncReport) {
	fmt.Fprintf(out, "media:     %d created, %d updated\n", report.MediaCreated, report.MediaUpdated)
	fmt.Fprintf(out, "playlists: %d created, %d updated\n", report.PlaylistsCreated, report.PlaylistsUpdated)
	fmt.Fprintf(out, "devices:   %d created, %d updated\n", report.DevicesCreated, report.DevicesUpdated)

	names := make([]string, 0, len(report.NewDevices))
	for name := range report.NewDevices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "new device %q token %s\n", name, report.NewDevices[name])
	}
}
