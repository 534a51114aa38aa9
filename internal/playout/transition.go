package playout

import "time"

// Transition owns the fade between items. It knows nothing about why an
// advance happened; it fades the surface out over the window, commits, then
// fades back in.
type Transition struct {
	sched   Scheduler
	window  time.Duration
	present func(opacity float64, over time.Duration)
	pending Timer
}

// NewTransition creates a controller that reports opacity changes to present.
func NewTransition(sched Scheduler, window time.Duration, present func(opacity float64, over time.Duration)) *Transition {
	return &Transition{sched: sched, window: window, present: present}
}

// Active reports whether a commit is waiting for the window to elapse.
func (t *Transition) Active() bool { return t.pending != nil }

// Run fades out, calls commit at the end of the window and fades back in.
// A transition already in progress is abandoned without committing.
func (t *Transition) Run(commit func()) {
	t.Cancel()
	if t.window <= 0 {
		commit()
		t.present(1, 0)
		return
	}

	t.present(0, t.window)
	t.pending = t.sched.After(t.window, func() {
		t.pending = nil
		commit()
		t.present(1, t.window)
	})
}

// Reveal fades a freshly committed item in with no preceding fade out.
func (t *Transition) Reveal() {
	t.Cancel()
	t.present(1, t.window)
}

// Cancel drops a pending commit.
func (t *Transition) Cancel() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}
