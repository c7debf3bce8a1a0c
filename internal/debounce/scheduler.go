// Package debounce coalesces bursts of input changes into a single call
package debounce

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// DefaultQuietPeriod is the delay after the last change before recomputing
const DefaultQuietPeriod = 300 * time.Millisecond

// Scheduler runs at most one pending callback. Scheduling replaces the
// pending callback, so only the last one of a burst runs.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
	CancelPending()
}

// ClockScheduler implements Scheduler on a clock.Clock so tests can use a mock clock
type ClockScheduler struct {
	clock clock.Clock

	mu    sync.Mutex
	timer *clock.Timer
	gen   uint64 // bumped on every Schedule and CancelPending
}

// NewClockScheduler creates a scheduler; a nil clock uses wall time
func NewClockScheduler(c clock.Clock) *ClockScheduler {
	if c == nil {
		c = clock.New()
	}
	return &ClockScheduler{clock: c}
}

// Schedule cancels any pending callback and runs fn after delay
func (s *ClockScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen

	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.gen != gen {
			// superseded after the timer already fired
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		fn()
	})
}

// CancelPending drops the pending callback, if any
func (s *ClockScheduler) CancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
}

// Pending reports whether a callback is waiting to run
func (s *ClockScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *ClockScheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
