package playout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	noticeUpdating = "Updating content"
	noticeUpdated  = "Content updated"

	kioskItemID = "kiosk"
)

// SessionConfig describes one viewer.
type SessionConfig struct {
	Token string
	// DirectVideo switches the session to single-video kiosk mode. Device
	// resolution and refresh are skipped entirely.
	DirectVideo     string
	RefreshInterval time.Duration
	Options         Options
}

// Kiosk reports whether the session plays a single ad-hoc video.
func (c SessionConfig) Kiosk() bool { return c.DirectVideo != "" }

// SessionStatus is a snapshot of a live session.
type SessionStatus struct {
	ID         string    `json:"id"`
	Token      string    `json:"token"`
	Kiosk      bool      `json:"kiosk"`
	DeviceID   string    `json:"device_id,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Playback   Status    `json:"playback"`
}

// Session owns the playback state for one viewer. Every engine call, timer
// callback, refresh result and surface event runs on the session's loop, one
// at a time.
type Session struct {
	id        string
	cfg       SessionConfig
	logger    zerolog.Logger
	engine    *Engine
	refresher *Refresher
	startedAt time.Time

	mailbox chan func()
	done    chan struct{}

	mu        sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
	fetches   sync.WaitGroup
	status    atomic.Pointer[SessionStatus]

	// loop-owned
	ctx      context.Context
	inflight bool
	rerun    bool
	loaded   bool
}

// NewSession builds a session that draws on renderer. The session does
// nothing until Start.
func NewSession(cfg SessionConfig, resolver Resolver, loader Loader, renderer Renderer, logger zerolog.Logger) *Session {
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		startedAt: time.Now().UTC(),
		mailbox:   make(chan func(), 64),
		done:      make(chan struct{}),
	}
	s.logger = logger.With().
		Str("component", "playout_session").
		Str("token", cfg.Token).
		Str("session_id", s.id).
		Logger()

	opts := cfg.Options
	if cfg.Kiosk() {
		opts.ShowOverlay = false
		opts.EmbedMarkers = nil
	} else {
		s.refresher = NewRefresher(cfg.Token, resolver, loader, s.logger)
	}
	s.engine = NewEngine(loopScheduler{post: s.post}, renderer, opts, s.logger)
	s.publishStatus()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Token returns the viewer token the session was opened for.
func (s *Session) Token() string { return s.cfg.Token }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start launches the session loop. It must be called at most once.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.ctx = ctx
	go s.run(ctx)
}

// Refresh is the manual trigger: it shows the updating notice at once and
// runs a tick. Kiosk sessions ignore it.
func (s *Session) Refresh() {
	s.post(func() {
		if s.refresher == nil {
			return
		}
		s.engine.Notify(noticeUpdating)
		s.startTick(true)
	})
}

// Nudge runs a tick without a notice. Used when the server learns that
// content changed.
func (s *Session) Nudge() {
	s.post(func() { s.startTick(false) })
}

// Skip advances past the active item.
func (s *Session) Skip() {
	s.post(s.engine.Advance)
}

// Report delivers surface feedback about the active item.
func (s *Session) Report(ev MediaEvent) {
	s.post(func() { s.engine.HandleMediaEvent(ev) })
}

// Status returns the last published snapshot.
func (s *Session) Status() SessionStatus {
	return *s.status.Load()
}

// Close stops the loop and waits until the refresh interval, advance timers,
// pending transitions and in-flight fetches are all gone. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel == nil {
			close(s.done)
			return
		}
		cancel()
	})
	<-s.done
	s.fetches.Wait()
}

// post queues fn on the loop. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.mailbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.engine.Stop()

	var tick <-chan time.Time
	if s.cfg.Kiosk() {
		s.engine.Load(kioskPlaylist(s.cfg.DirectVideo))
		s.loaded = true
	} else {
		s.engine.ShowLoading()
		s.startTick(false)
		if s.cfg.RefreshInterval > 0 {
			ticker := time.NewTicker(s.cfg.RefreshInterval)
			defer ticker.Stop()
			tick = ticker.C
		}
	}
	s.publishStatus()

	s.logger.Debug().Bool("kiosk", s.cfg.Kiosk()).Msg("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Msg("session stopped")
			return
		case <-tick:
			s.startTick(false)
		case fn := <-s.mailbox:
			fn()
		}
		s.publishStatus()
	}
}

// startTick runs the network half of a tick off the loop and posts the
// result back. Only one fetch is in flight at a time; a manual refresh that
// arrives meanwhile is replayed once the current fetch lands.
func (s *Session) startTick(manual bool) {
	if s.refresher == nil {
		return
	}
	if s.inflight {
		if manual {
			s.rerun = true
		}
		s.logger.Debug().Bool("manual", manual).Msg("refresh already in flight")
		return
	}
	s.inflight = true

	ctx := s.ctx
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		res := s.refresher.Fetch(ctx)
		s.post(func() {
			s.inflight = false
			s.apply(res)
			if s.rerun {
				s.rerun = false
				s.startTick(false)
			}
		})
	}()
}

func (s *Session) apply(res FetchResult) {
	if s.ctx.Err() != nil {
		return
	}
	d := s.refresher.Apply(res)
	telemetry.RefreshTicksTotal.WithLabelValues(d.Outcome).Inc()

	switch d.Action {
	case ActionNotFound:
		s.engine.ShowNotFound(s.cfg.Token)
	case ActionNoContent:
		s.engine.ShowNoContent(d.Device.Name)
	case ActionReplace:
		s.engine.Load(d.Playlist)
		if s.loaded {
			s.engine.Notify(noticeUpdated)
		}
		s.loaded = true
		s.logger.Info().
			Str("playlist_id", d.Playlist.ID).
			Int("items", d.Playlist.Len()).
			Msg("playlist loaded")
	}
}

func (s *Session) publishStatus() {
	st := SessionStatus{
		ID:        s.id,
		Token:     s.cfg.Token,
		Kiosk:     s.cfg.Kiosk(),
		StartedAt: s.startedAt,
		Playback:  s.engine.Status(),
	}
	if s.refresher != nil {
		if dev, ok := s.refresher.Device(); ok {
			st.DeviceID = dev.ID
			st.DeviceName = dev.Name
		}
	}
	s.status.Store(&st)
}

func kioskPlaylist(src string) content.Playlist {
	return content.Playlist{
		PlaylistMeta: content.PlaylistMeta{ID: kioskItemID, Name: kioskItemID},
		Items: []content.MediaItem{{
			ID:      kioskItemID,
			Kind:    content.KindVideo,
			Content: src,
		}},
	}
}
