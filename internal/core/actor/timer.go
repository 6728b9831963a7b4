package actor

import "time"

// Timer reports when a fixed interval has elapsed since it last fired.
// The interval cannot change after construction and lastFired only moves
// forward. A Timer polled less often than its interval fires once, it does
// not catch up on the missed boundaries.
type Timer struct {
	clock     Clock
	lastFired time.Time
	interval  time.Duration
}

type TimerOption func(*Timer)

// WithClock replaces the system clock.
func WithClock(c Clock) TimerOption {
	return func(t *Timer) {
		if c != nil {
			t.clock = c
		}
	}
}

// NewTimer starts counting from now. A non-positive interval fires on every Tick.
func NewTimer(interval time.Duration, opts ...TimerOption) *Timer {
	t := &Timer{
		clock:    SystemClock,
		interval: interval,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.lastFired = t.clock.Now()
	return t
}

// Tick returns true and resets when at least one interval has elapsed.
func (t *Timer) Tick() bool {
	now := t.clock.Now()
	if now.Sub(t.lastFired) < t.interval {
		return false
	}
	if now.After(t.lastFired) {
		t.lastFired = now
	}
	return true
}

func (t *Timer) Interval() time.Duration { return t.interval }

func (t *Timer) LastFired() time.Time { return t.lastFired }
