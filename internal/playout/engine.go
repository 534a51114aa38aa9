package playout

import (
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/rs/zerolog"
)

// State is the engine's playback state.
type State uint8

const (
	// StateEmpty has no playable content; it holds until a refresh delivers some.
	StateEmpty State = iota
	// StateShowing has the item at the current index as the render target.
	StateShowing
	// StateAdvancing has a transition running towards the next index.
	StateAdvancing
)

func (s State) String() string {
	switch s {
	case StateShowing:
		return "showing"
	case StateAdvancing:
		return "advancing"
	default:
		return "empty"
	}
}

type armKind uint8

const (
	armNone armKind = iota
	armTimer
	armEndOfMedia
)

func (k armKind) String() string {
	switch k {
	case armTimer:
		return "timer"
	case armEndOfMedia:
		return "end_of_media"
	default:
		return "none"
	}
}

// armed is the one advance mechanism outstanding for the active item.
// Replacing it always goes through disarm.
type armed struct {
	kind   armKind
	reason advanceReason
	timer  Timer
}

// Options tune playback timing and presentation.
type Options struct {
	TransitionWindow time.Duration
	DefaultDuration  time.Duration
	EmbedDuration    time.Duration
	ErrorGrace       time.Duration
	NoticeDuration   time.Duration
	VideoMuted       bool
	EmbedMarkers     []string
	ShowOverlay      bool
}

// DefaultOptions returns the standard timing.
func DefaultOptions() Options {
	return Options{
		TransitionWindow: 500 * time.Millisecond,
		DefaultDuration:  8 * time.Second,
		EmbedDuration:    10 * time.Second,
		ErrorGrace:       time.Second,
		NoticeDuration:   3 * time.Second,
		EmbedMarkers:     []string{"youtube.com/embed/", "youtube-nocookie.com/embed/", "player.vimeo.com/video/"},
		ShowOverlay:      true,
	}
}

// Status is a point-in-time view of the engine.
type Status struct {
	State      string    `json:"state"`
	View       ViewState `json:"view"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	PlaylistID string    `json:"playlist_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Variant    string    `json:"variant,omitempty"`
	Armed      string    `json:"armed"`
}

// Engine drives a single media slot through a playlist. It is not safe for
// concurrent use; every call and every scheduler callback must run on the
// same serialized loop.
type Engine struct {
	sched    Scheduler
	renderer Renderer
	opts     Options
	logger   zerolog.Logger

	state    State
	playlist content.Playlist
	index    int
	seq      uint64
	variant  Variant
	armed    armed
	trans    *Transition

	view       ViewState
	token      string
	deviceName string
	opacity    float64
	fade       time.Duration

	notice      string
	noticeTimer Timer
	stopped     bool
}

// NewEngine creates an engine that draws on r.
func NewEngine(sched Scheduler, r Renderer, opts Options, logger zerolog.Logger) *Engine {
	e := &Engine{
		sched:    sched,
		renderer: r,
		opts:     opts,
		logger:   logger,
		view:     ViewLoading,
		opacity:  1,
	}
	e.trans = NewTransition(sched, opts.TransitionWindow, e.present)
	return e
}

// State returns the current playback state.
func (e *Engine) State() State { return e.state }

// Index returns the current position in the playlist.
func (e *Engine) Index() int { return e.index }

// ShowLoading renders the waiting view.
func (e *Engine) ShowLoading() {
	e.clear()
	e.view = ViewLoading
	e.render()
}

// ShowNotFound clears playback and renders the unregistered-device view.
func (e *Engine) ShowNotFound(token string) {
	if e.state == StateEmpty && e.view == ViewNotFound && e.token == token {
		return
	}
	e.clear()
	e.view = ViewNotFound
	e.token = token
	e.render()
}

// ShowNoContent clears playback and renders the no-content view.
func (e *Engine) ShowNoContent(deviceName string) {
	if e.state == StateEmpty && e.view == ViewNoContent && e.deviceName == deviceName {
		return
	}
	e.clear()
	e.view = ViewNoContent
	e.deviceName = deviceName
	e.render()
}

// Load replaces the playlist and restarts at its first item. Any pending
// advance or transition is cancelled first.
func (e *Engine) Load(p content.Playlist) {
	if e.stopped {
		return
	}
	if p.Empty() {
		e.ShowNoContent(e.deviceName)
		return
	}

	e.disarm()
	e.trans.Cancel()

	if e.state == StateEmpty {
		e.commit(p, 0)
		e.trans.Reveal()
		return
	}

	telemetry.PlaybackResetsTotal.Inc()
	e.state = StateAdvancing
	e.trans.Run(func() { e.commit(p, 0) })
}

// Advance skips the active item.
func (e *Engine) Advance() {
	e.advance(reasonSkip)
}

// HandleMediaEvent applies surface feedback. Events for anything but the
// active item are dropped.
func (e *Engine) HandleMediaEvent(ev MediaEvent) {
	if e.stopped || e.state != StateShowing || ev.Seq != e.seq {
		e.logger.Debug().Uint64("seq", ev.Seq).Uint64("current", e.seq).Str("kind", string(ev.Kind)).Msg("ignoring stale media event")
		return
	}
	policies[e.variant].onEvent(e, e.current(), ev.Kind)
}

// Notify shows a transient notice over the current view.
func (e *Engine) Notify(msg string) {
	if e.stopped {
		return
	}
	if e.noticeTimer != nil {
		e.noticeTimer.Stop()
		e.noticeTimer = nil
	}
	e.notice = msg
	e.render()

	if e.opts.NoticeDuration > 0 {
		e.noticeTimer = e.sched.After(e.opts.NoticeDuration, func() {
			e.noticeTimer = nil
			e.notice = ""
			e.render()
		})
	}
}

// Stop cancels every pending timer. The engine renders nothing afterwards.
func (e *Engine) Stop() {
	e.disarm()
	e.trans.Cancel()
	if e.noticeTimer != nil {
		e.noticeTimer.Stop()
		e.noticeTimer = nil
	}
	e.stopped = true
}

// Status reports the engine's position.
func (e *Engine) Status() Status {
	st := Status{
		State: e.state.String(),
		View:  e.view,
		Armed: e.armed.kind.String(),
	}
	if e.state != StateEmpty {
		item := e.current()
		st.Index = e.index
		st.Total = e.playlist.Len()
		st.PlaylistID = e.playlist.ID
		st.ItemID = item.ID
		st.Variant = e.variant.String()
	}
	return st
}

// Frame returns what the surface should currently show.
func (e *Engine) Frame() Frame {
	f := Frame{
		State:   e.view,
		Seq:     e.seq,
		Opacity: 1,
		Notice:  e.notice,
	}
	switch e.view {
	case ViewPlaying:
		f.Item = itemView(e.current(), e.variant, e.opts.VideoMuted)
		f.Position = e.index + 1
		f.Total = e.playlist.Len()
		f.Counter = fmt.Sprintf("%d / %d", f.Position, f.Total)
		f.Overlay = e.opts.ShowOverlay
		f.Opacity = e.opacity
		f.FadeMs = e.fade.Milliseconds()
	case ViewNotFound:
		f.Token = e.token
	case ViewNoContent:
		f.DeviceName = e.deviceName
	}
	return f
}

func (e *Engine) current() content.MediaItem {
	return e.playlist.Items[e.index]
}

// commit makes index the active item and arms its policy.
func (e *Engine) commit(p content.Playlist, index int) {
	e.playlist = p
	e.index = index
	e.seq++
	e.state = StateShowing
	e.view = ViewPlaying
	e.opacity, e.fade = 0, 0

	item := e.current()
	e.variant = Classify(item, e.opts.EmbedMarkers)
	err := e.render()

	e.logger.Debug().
		Int("index", index).
		Int("total", p.Len()).
		Str("media_id", item.ID).
		Str("variant", e.variant.String()).
		Msg("showing item")

	policies[e.variant].arm(e, item, err)
}

func (e *Engine) advance(reason advanceReason) {
	if e.stopped || e.state != StateShowing {
		return
	}
	e.disarm()
	telemetry.PlaybackAdvancesTotal.WithLabelValues(e.variant.String(), string(reason)).Inc()

	e.state = StateAdvancing
	p := e.playlist
	next := (e.index + 1) % p.Len()
	e.trans.Run(func() { e.commit(p, next) })
}

func (e *Engine) armTimer(d time.Duration, reason advanceReason) {
	e.disarm()
	seq := e.seq
	e.armed = armed{
		kind:   armTimer,
		reason: reason,
		timer: e.sched.After(d, func() {
			if seq != e.seq {
				return
			}
			e.armed = armed{}
			e.advance(reason)
		}),
	}
}

// armGrace shortens the wait after a render failure. Repeated failures do
// not push the deadline back.
func (e *Engine) armGrace() {
	if e.armed.kind == armTimer && e.armed.reason == reasonError {
		return
	}
	e.armTimer(e.opts.ErrorGrace, reasonError)
}

func (e *Engine) armEndOfMedia() {
	e.disarm()
	e.armed = armed{kind: armEndOfMedia, reason: reasonEnded}
}

func (e *Engine) disarm() {
	if e.armed.timer != nil {
		e.armed.timer.Stop()
	}
	e.armed = armed{}
}

// clear drops the playlist and everything pending.
func (e *Engine) clear() {
	e.disarm()
	e.trans.Cancel()
	e.state = StateEmpty
	e.playlist = content.Playlist{}
	e.index = 0
	e.seq++
	e.opacity, e.fade = 1, 0
	e.token, e.deviceName = "", ""
}

func (e *Engine) present(opacity float64, over time.Duration) {
	e.opacity = opacity
	e.fade = over
	e.render()
}

func (e *Engine) render() error {
	if e.stopped || e.renderer == nil {
		return ErrNoSurface
	}
	return e.renderer.Render(e.Frame())
}
