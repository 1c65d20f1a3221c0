package teamsync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTriggerCoalescesFires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	tr := newTrigger(clock, 100*time.Millisecond, func() { runs.Add(1) })

	tr.Fire()
	tr.Fire()
	tr.Fire()

	clock.Advance(100 * time.Millisecond)
	waitFor(t, "coalesced callback", func() bool { return runs.Load() == 1 })

	// A new Fire after the window ran opens a fresh window.
	tr.Fire()
	clock.Advance(100 * time.Millisecond)
	waitFor(t, "second callback", func() bool { return runs.Load() == 2 })
}

func TestTriggerDoesNotFireEarly(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	tr := newTrigger(clock, 100*time.Millisecond, func() { runs.Add(1) })

	tr.Fire()
	clock.Advance(99 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatal("callback ran before the window elapsed")
	}
}

func TestTriggerStopCancelsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	tr := newTrigger(clock, 100*time.Millisecond, func() { runs.Add(1) })

	tr.Fire()
	tr.Stop()
	clock.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != 0 {
		t.Fatal("callback ran after Stop")
	}
}
