package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/facebookgo/clock"
)

// waitFor polls cond on wall time; mock timers may fire on another goroutine
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClockScheduler_CoalescesBurst(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock)

	var calls, last int64
	for i := 1; i <= 10; i++ {
		v := int64(i)
		s.Schedule(DefaultQuietPeriod, func() {
			atomic.AddInt64(&calls, 1)
			atomic.StoreInt64(&last, v)
		})
		mock.Add(50 * time.Millisecond)
	}

	if got := atomic.LoadInt64(&calls); got != 0 {
		t.Fatalf("Callback ran %d times inside the quiet period", got)
	}

	mock.Add(DefaultQuietPeriod)
	waitFor(t, func() bool { return atomic.LoadInt64(&calls) >= 1 })

	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("Callback ran %d times, want 1", got)
	}
	if got := atomic.LoadInt64(&last); got != 10 {
		t.Errorf("Callback used value %d, want last value 10", got)
	}
	if s.Pending() {
		t.Error("Scheduler still pending after firing")
	}
}

func TestClockScheduler_CancelPending(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock)

	var calls int64
	s.Schedule(DefaultQuietPeriod, func() { atomic.AddInt64(&calls, 1) })
	if !s.Pending() {
		t.Fatal("Expected a pending callback")
	}

	s.CancelPending()
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	if got := atomic.LoadInt64(&calls); got != 0 {
		t.Errorf("Cancelled callback ran %d times", got)
	}
	if s.Pending() {
		t.Error("Scheduler pending after CancelPending")
	}
}

func TestClockScheduler_SeparateBursts(t *testing.T) {
	mock := clock.NewMock()
	s := NewClockScheduler(mock)

	var calls int64
	fn := func() { atomic.AddInt64(&calls, 1) }

	s.Schedule(DefaultQuietPeriod, fn)
	mock.Add(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&calls) == 1 })

	s.Schedule(DefaultQuietPeriod, fn)
	mock.Add(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt64(&calls) == 2 })
}

func TestNewClockScheduler_WallClock(t *testing.T) {
	s := NewClockScheduler(nil)

	done := make(chan struct{})
	s.Schedule(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Callback did not run on the wall clock")
	}
}
