package playout

import (
	"sort"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/rs/zerolog"
)

// fakeScheduler runs timers in virtual time. Timers due at the same instant
// fire in creation order.
type fakeScheduler struct {
	now    time.Duration
	seq    uint64
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) After(d time.Duration, fn func()) Timer {
	s.seq++
	t := &fakeTimer{at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward by d, firing everything due on the way.
func (s *fakeScheduler) Advance(d time.Duration) {
	end := s.now + d
	for {
		next := s.next(end)
		if next == nil {
			break
		}
		s.now = next.at
		next.fired = true
		next.fn()
	}
	s.now = end
}

// AdvanceTo moves virtual time to the absolute instant at.
func (s *fakeScheduler) AdvanceTo(at time.Duration) {
	if at > s.now {
		s.Advance(at - s.now)
	}
}

func (s *fakeScheduler) next(end time.Duration) *fakeTimer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].at == s.timers[j].at {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at < s.timers[j].at
	})
	if len(s.timers) == 0 || s.timers[0].at > end {
		return nil
	}
	return s.timers[0]
}

func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type frameRecorder struct {
	frames []Frame
	err    error
}

func (r *frameRecorder) Render(f Frame) error {
	r.frames = append(r.frames, f)
	return r.err
}

func (r *frameRecorder) last() Frame {
	if len(r.frames) == 0 {
		return Frame{}
	}
	return r.frames[len(r.frames)-1]
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *fakeScheduler, *frameRecorder) {
	t.Helper()
	sched := &fakeScheduler{}
	rec := &frameRecorder{}
	return NewEngine(sched, rec, opts, zerolog.Nop()), sched, rec
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func image(id string, secs int) content.MediaItem {
	return content.MediaItem{ID: id, Title: id, Kind: content.KindImage, Content: "https://cdn.example.com/" + id + ".jpg", DurationSec: secs}
}

func news(id string, secs int) content.MediaItem {
	return content.MediaItem{ID: id, Title: id, Kind: content.KindNews, Content: "<p>" + id + "</p>", DurationSec: secs}
}

func video(id, src string, secs int) content.MediaItem {
	return content.MediaItem{ID: id, Title: id, Kind: content.KindVideo, Content: src, DurationSec: secs}
}

func playlistOf(id string, updated time.Time, items ...content.MediaItem) content.Playlist {
	return content.Playlist{
		PlaylistMeta: content.PlaylistMeta{ID: id, Name: id, UpdatedAt: updated},
		Items:        items,
	}
}

func expectPosition(t *testing.T, e *Engine, state State, index int) {
	t.Helper()
	if e.State() != state || e.Index() != index {
		t.Fatalf("position: got %s(%d) want %s(%d)", e.State(), e.Index(), state, index)
	}
}
