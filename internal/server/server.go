/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_signage/internal/api"
	"github.com/friendsincode/grimnir_signage/internal/cache"
	"github.com/friendsincode/grimnir_signage/internal/catalog"
	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/db"
	"github.com/friendsincode/grimnir_signage/internal/device"
	"github.com/friendsincode/grimnir_signage/internal/eventbus"
	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/media"
	"github.com/friendsincode/grimnir_signage/internal/playlist"
	"github.com/friendsincode/grimnir_signage/internal/playout"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/friendsincode/grimnir_signage/internal/web"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db          *gorm.DB
	cache       *cache.Cache
	records     store.Store
	cachedStore *store.CachedStore
	bus         events.Broker
	catalog     *catalog.Service
	media       *media.Service
	playout     *playout.Manager
	api         *api.API
	webHandler  *web.Handler

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: srv.router,
		// Keep header deadline to protect against slowloris, but do not enforce a full-body
		// read deadline so large uploads are not terminated mid-request.
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       0,
		// Viewer sockets are long lived; the middleware timeout covers everything else.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// timeoutMiddleware bounds ordinary requests. Viewer sockets and uploads are
// exempt.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" || r.URL.Path == "/api/v1/media/upload" {
				next.ServeHTTP(w, r)
				return
			}
			timeout.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		// Viewer pages embed third-party players and remote media.
		w.Header().Set("Content-Security-Policy", "default-src 'self' 'unsafe-inline' data: blob: https: http:; connect-src 'self' ws: wss:; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}

	if err := s.initEventBus(); err != nil {
		return err
	}

	s.records = store.NewGormStore(database, s.logger)
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		mediaCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = mediaCache
			s.DeferClose(func() error { return s.cache.Close() })
			s.cachedStore = store.NewCachedStore(s.records, mediaCache, s.logger)
			s.records = s.cachedStore
		}
	}

	if s.cfg.S3Bucket == "" {
		if err := os.MkdirAll(s.cfg.MediaRoot, 0o755); err != nil {
			return fmt.Errorf("failed to create media directory %s: %w", s.cfg.MediaRoot, err)
		}
		s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("media directory ready")
	}
	mediaSvc, err := media.NewService(s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.media = mediaSvc

	s.catalog = catalog.NewService(database, s.bus, s.logger)
	s.playout = playout.NewManager(
		device.NewResolver(s.records, s.logger),
		playlist.NewLoader(s.records, s.logger),
		playout.SettingsFromConfig(s.cfg),
		s.bus,
		s.logger,
	)

	s.api = api.New(s.catalog, s.media, s.playout, s.records, api.Options{
		MaxUploadBytes:  s.cfg.MaxUploadSizeBytes(),
		RateLimitPerMin: s.cfg.RateLimitPerMin,
	}, s.logger)

	webHandler, err := web.NewHandler(s.playout, s.logger)
	if err != nil {
		return err
	}
	s.webHandler = webHandler
	return nil
}

func (s *Server) initEventBus() error {
	switch s.cfg.EventBus {
	case config.EventBusRedis:
		rcfg := eventbus.DefaultRedisConfig()
		rcfg.Addr = s.cfg.RedisAddr
		rcfg.Password = s.cfg.RedisPassword
		rcfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(rcfg, s.cfg.InstanceID, s.logger)
		if err != nil {
			return fmt.Errorf("redis event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
	case config.EventBusNATS:
		ncfg := eventbus.DefaultNATSConfig()
		ncfg.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(ncfg, s.cfg.InstanceID, s.logger)
		if err != nil {
			return fmt.Errorf("nats event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
	default:
		s.bus = events.NewBus()
	}
	s.logger.Info().Str("kind", string(s.cfg.EventBus)).Msg("event bus ready")
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	if s.playout != nil {
		s.playout.Shutdown()
	}
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Nudge live viewers when content changes, on this node or another.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.playout.Run(ctx, s.bus)
	}()

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			db.RunConnectionMetrics(ctx, s.db, 30*time.Second)
		}()
	}

	// Edits to the manifest on disk reach viewers through the bus.
	if s.cfg.ManifestPath != "" {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.catalog.WatchManifest(ctx, s.cfg.ManifestPath, nil); err != nil {
				s.logger.Error().Err(err).Msg("manifest watcher stopped")
			}
		}()
	}

	if s.cachedStore != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			runCacheInvalidation(ctx, s.bus, s.cachedStore, s.logger)
		}()
	}
}

// mediaInvalidator drops cached media snapshots.
type mediaInvalidator interface {
	InvalidateMedia(ctx context.Context, mediaID string) error
}

// runCacheInvalidation drops cached media snapshots when media changes.
func runCacheInvalidation(ctx context.Context, bus events.Broker, inv mediaInvalidator, logger zerolog.Logger) {
	updated := bus.Subscribe(events.EventMediaUpdated)
	deleted := bus.Subscribe(events.EventMediaDeleted)
	defer func() {
		bus.Unsubscribe(events.EventMediaUpdated, updated)
		bus.Unsubscribe(events.EventMediaDeleted, deleted)
	}()

	logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload, ok bool) bool {
		if !ok {
			return false
		}
		if mediaID := payload.String("media_id"); mediaID != "" {
			logger.Debug().Str("media_id", mediaID).Msg("invalidating media cache")
			if err := inv.InvalidateMedia(ctx, mediaID); err != nil {
				logger.Debug().Err(err).Str("media_id", mediaID).Msg("media cache invalidation failed")
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload, ok := <-updated:
			if !invalidate(payload, ok) {
				return
			}
		case payload, ok := <-deleted:
			if !invalidate(payload, ok) {
				return
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		response := `{"status":"ok"`
		if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
			status = http.StatusServiceUnavailable
			response = `{"status":"unavailable"`
		}
		response += fmt.Sprintf(`,"sessions":%d}`, len(s.playout.Sessions()))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	// Uploaded files when stored on the local filesystem.
	if s.cfg.S3Bucket == "" {
		files := http.StripPrefix("/media/", http.FileServer(http.Dir(s.cfg.MediaRoot)))
		s.router.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			files.ServeHTTP(w, r)
		})
	}

	s.api.Routes(s.router)
	s.webHandler.Routes(s.router)
}
