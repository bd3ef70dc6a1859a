package testutil

import (
	"sync"
	"time"
)

// ManualClock is a clock.Clock whose time only moves when a test moves it.
//
// The same ManualClock is usually shared by the committer, the activity
// recorder and the feed so that watermarks and timestamps line up exactly.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// Epoch is the default start time of a ManualClock.
var Epoch = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

// NewManualClock creates a clock frozen at start.
// A zero start selects Epoch.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start.UTC()}
}

// Now returns the current frozen time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// TickingClock is a ManualClock that advances by Step after every Now call.
//
// Useful where many events are appended in a row and each needs a distinct,
// increasing timestamp without the test advancing the clock by hand.
type TickingClock struct {
	ManualClock
	Step time.Duration
}

// NewTickingClock creates a clock starting at start (zero selects Epoch) that
// advances by step on every read.
func NewTickingClock(start time.Time, step time.Duration) *TickingClock {
	if start.IsZero() {
		start = Epoch
	}
	return &TickingClock{ManualClock: ManualClock{now: start.UTC()}, Step: step}
}

// Now returns the current time, then advances it by Step.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.Step)
	return now
}
