package playout

import (
	"sync/atomic"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running and reports whether it did so.
	Stop() bool
}

// Scheduler runs callbacks after a delay. Callbacks are delivered on the
// owner's serialized context, never concurrently with other engine calls.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// loopScheduler backs timers with the runtime clock and hands fired
// callbacks to post, which queues them on the session loop.
type loopScheduler struct {
	post func(func()) bool
}

type loopTimer struct {
	t    *time.Timer
	done atomic.Bool
}

func (s loopScheduler) After(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		s.post(func() {
			// Stop may have run on the loop after the callback was queued
			if lt.done.Swap(true) {
				return
			}
			fn()
		})
	})
	return lt
}

func (t *loopTimer) Stop() bool {
	if t.done.Swap(true) {
		return false
	}
	t.t.Stop()
	return true
}
