package flow

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimerFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAfter(time.Millisecond, func() { close(fired) }); err != nil {
		t.Fatalf("ScheduleAfter: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timer did not fire")
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var fired atomic.Bool
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { fired.Store(true) })
	if err != nil {
		t.Fatalf("ScheduleAfter: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Errorf("cancelled timer fired")
	}
	if n := timer.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d after cancel", n)
	}
	// Cancelling again is a no-op.
	if err := timer.Cancel(id); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
}

func TestSimpleTimerStopAll(t *testing.T) {
	timer := NewSimpleTimer()
	var fired atomic.Int32
	for i := 0; i < 3; i++ {
		timer.ScheduleAfter(50*time.Millisecond, func() { fired.Add(1) })
	}
	if n := timer.ActiveCount(); n != 3 {
		t.Fatalf("ActiveCount = %d, want 3", n)
	}
	timer.Stop()
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("%d timers fired after Stop", got)
	}
}
