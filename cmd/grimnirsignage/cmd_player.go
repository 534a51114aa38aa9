/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/device"
	"github.com/friendsincode/grimnir_signage/internal/logging"
	"github.com/friendsincode/grimnir_signage/internal/playlist"
	"github.com/friendsincode/grimnir_signage/internal/playout"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/friendsincode/grimnir_signage/internal/web"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Run a standalone viewer for one device",
	Long:  "Resolve a device through a remote Grimnir Signage server and serve its viewer locally, for kiosks that run next to the screen.",
	RunE:  runPlayer,
}

var (
	playerServer string
	playerToken  string
	playerVideo  string
	playerListen string
)

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.Flags().StringVar(&playerServer, "server", "", "Base URL of the Grimnir Signage server (default $SIGNAGE_PLAYER_SERVER)")
	playerCmd.Flags().StringVar(&playerToken, "token", "", "Device token (default $SIGNAGE_PLAYER_TOKEN)")
	playerCmd.Flags().StringVar(&playerVideo, "video", "", "Play this single video URL instead of the device playlist")
	playerCmd.Flags().StringVar(&playerListen, "listen", "127.0.0.1:8090", "Local address to serve the viewer on")
}

func runPlayer(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadPlayer()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.Setup(cfg.Environment)

	if playerServer == "" {
		playerServer = cfg.PlayerServerURL
	}
	if playerToken == "" {
		playerToken = cfg.PlayerToken
	}
	if playerServer == "" && playerVideo == "" {
		return errors.New("--server is required unless --video is given")
	}
	if playerToken == "" {
		playerToken = "kiosk"
		if playerVideo == "" {
			return errors.New("--token is required")
		}
	}
	upstream, err := url.Parse(playerServer)
	if err != nil {
		return fmt.Errorf("invalid --server: %w", err)
	}

	stopTracer, err := initTracer("grimnir-signage-player")
	if err != nil {
		return err
	}
	defer stopTracer()

	records := store.NewHTTPClient(upstream.String(), 10*time.Second)
	manager := playout.NewManager(
		device.NewResolver(records, logger),
		playlist.NewLoader(records, logger),
		playout.SettingsFromConfig(cfg),
		nil,
		logger,
	)
	defer manager.Shutdown()

	viewer, err := web.NewHandler(manager, logger)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	viewer.Routes(router)
	router.Handle("/metrics", telemetry.Handler())
	// Uploaded media URLs are relative to the server.
	if upstream.Host != "" {
		router.Handle("/media/*", httputil.NewSingleHostReverseProxy(upstream))
	}
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		target := "/view/" + url.PathEscape(playerToken)
		if playerVideo != "" {
			target += "?video=" + url.QueryEscape(playerVideo)
		}
		http.Redirect(w, r, target, http.StatusFound)
	})

	httpServer := &http.Server{
		Addr:              playerListen,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", playerListen).Str("server", upstream.String()).Msg("player listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	logger.Info().Msg("player stopped")
	return nil
}
