package teamsync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// trigger is a single-shot coalescing timer: any number of Fire calls
// inside one window collapse into a single callback invocation when the
// window elapses. The window restarts only after the callback runs.
type trigger struct {
	clock clockwork.Clock
	d     time.Duration
	fn    func()

	mu    sync.Mutex
	armed bool
	timer clockwork.Timer
}

func newTrigger(clock clockwork.Clock, d time.Duration, fn func()) *trigger {
	return &trigger{clock: clock, d: d, fn: fn}
}

// Fire schedules the callback if no window is open; otherwise it coalesces
// into the open window.
func (t *trigger) Fire() {
	t.mu.Lock()
	if t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = true
	t.timer = t.clock.AfterFunc(t.d, func() {
		t.mu.Lock()
		t.armed = false
		t.mu.Unlock()
		t.fn()
	})
	t.mu.Unlock()
}

// Stop cancels any open window without running the callback.
func (t *trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed && t.timer != nil {
		t.timer.Stop()
		t.armed = false
	}
}
