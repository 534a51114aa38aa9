package playout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/events"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrManagerClosed is returned by Open after Shutdown.
var ErrManagerClosed = errors.New("playout: manager closed")

// Settings are shared by every session a manager opens.
type Settings struct {
	RefreshInterval time.Duration
	Options         Options
}

// DefaultSettings returns the standard refresh interval and timing.
func DefaultSettings() Settings {
	return Settings{RefreshInterval: 30 * time.Second, Options: DefaultOptions()}
}

// SettingsFromConfig maps configuration onto session settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	opts := DefaultOptions()
	opts.TransitionWindow = cfg.TransitionWindow
	opts.DefaultDuration = cfg.DefaultDuration
	opts.EmbedDuration = cfg.EmbedDuration
	opts.ErrorGrace = cfg.ErrorGrace
	opts.NoticeDuration = cfg.NoticeDuration
	opts.VideoMuted = cfg.VideoMuted
	if len(cfg.EmbedMarkers) > 0 {
		opts.EmbedMarkers = cfg.EmbedMarkers
	}
	return Settings{RefreshInterval: cfg.RefreshInterval, Options: opts}
}

// Manager tracks live sessions per viewer connection.
type Manager struct {
	resolver Resolver
	loader   Loader
	settings Settings
	bus      events.Publisher
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a playout manager. bus may be nil.
func NewManager(resolver Resolver, loader Loader, settings Settings, bus events.Publisher, logger zerolog.Logger) *Manager {
	return &Manager{
		resolver: resolver,
		loader:   loader,
		settings: settings,
		bus:      bus,
		logger:   logger.With().Str("component", "playout_manager").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for token drawing on renderer. A non-empty
// directVideo opens a kiosk session instead.
func (m *Manager) Open(ctx context.Context, token, directVideo string, renderer Renderer) (*Session, error) {
	sess := NewSession(SessionConfig{
		Token:           token,
		DirectVideo:     directVideo,
		RefreshInterval: m.settings.RefreshInterval,
		Options:         m.settings.Options,
	}, m.resolver, m.loader, renderer, m.logger)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.sessions[sess.ID()] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	// Sessions outlive the request that opened them; Close ends them.
	sess.Start(context.WithoutCancel(ctx))
	telemetry.SessionsActive.Set(float64(count))
	m.publish(events.EventViewerConnected, sess)
	return sess, nil
}

// Close tears down the session with id. Unknown ids are ignored.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}

	sess.Close()
	telemetry.SessionsActive.Set(float64(count))
	m.publish(events.EventViewerDisconnected, sess)
}

// Refresh runs a manual refresh on session id. It reports whether the
// session exists.
func (m *Manager) Refresh(id string) bool {
	sess := m.session(id)
	if sess == nil {
		return false
	}
	sess.Refresh()
	return true
}

// Skip advances session id past its active item.
func (m *Manager) Skip(id string) bool {
	sess := m.session(id)
	if sess == nil {
		return false
	}
	sess.Skip()
	return true
}

func (m *Manager) session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Sessions lists live sessions, oldest first.
func (m *Manager) Sessions() []SessionStatus {
	m.mu.Lock()
	out := make([]SessionStatus, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess.Status())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Nudge asks every session the event may concern to refresh. Media
// deletions carry no binding, so they reach every session.
func (m *Manager) Nudge(eventType events.EventType, payload events.Payload) int {
	m.mu.Lock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		if sess.cfg.Kiosk() {
			continue
		}
		if concerns(eventType, payload, sess.Status()) {
			targets = append(targets, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range targets {
		sess.Nudge()
	}
	if len(targets) > 0 {
		m.logger.Debug().Str("event", string(eventType)).Int("sessions", len(targets)).Msg("nudged sessions")
	}
	return len(targets)
}

func concerns(eventType events.EventType, payload events.Payload, st SessionStatus) bool {
	switch eventType {
	case events.EventDeviceUpdated, events.EventDeviceDeleted:
		if token := payload.String("token"); token != "" && token == st.Token {
			return true
		}
		id := payload.String("device_id")
		return id != "" && id == st.DeviceID
	case events.EventPlaylistUpdated, events.EventPlaylistDeleted:
		id := payload.String("playlist_id")
		return id != "" && id == st.Playback.PlaylistID
	case events.EventMediaDeleted:
		return true
	default:
		return false
	}
}

// Run nudges sessions for content events from broker until ctx is done.
func (m *Manager) Run(ctx context.Context, broker events.Broker) {
	var wg sync.WaitGroup
	for _, et := range events.ContentEvents {
		sub := broker.Subscribe(et)
		wg.Add(1)
		go func(et events.EventType, sub events.Subscriber) {
			defer wg.Done()
			defer broker.Unsubscribe(et, sub)
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					m.Nudge(et, payload)
				}
			}
		}(et, sub)
	}
	wg.Wait()
}

// Shutdown closes every session. Open fails afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.closed = true
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
	telemetry.SessionsActive.Set(0)
	m.logger.Info().Int("sessions", len(sessions)).Msg("playout manager stopped")
}

func (m *Manager) publish(eventType events.EventType, sess *Session) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventType, events.Payload{
		"session_id": sess.ID(),
		"token":      sess.Token(),
		"kiosk":      sess.cfg.Kiosk(),
	})
}
