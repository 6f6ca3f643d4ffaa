package testutil

import (
	"sync"
	"time"
)

// ManualFrameClock is a frame clock driven by the test.
//
// Tick delivers one display frame. The channel holds a single pending tick,
// so a tick issued before the scope starts waiting is not lost, and a burst
// of ticks while nothing waits collapses into one.
//
// Thread-safety: All methods are safe for concurrent use.
type ManualFrameClock struct {
	mu      sync.Mutex
	ch      chan time.Time
	now     time.Time
	ticks   int64
	waits   int64
	stopped bool
}

// NewManualFrameClock creates a running clock starting at the Unix epoch.
func NewManualFrameClock() *ManualFrameClock {
	return &ManualFrameClock{
		ch:  make(chan time.Time, 1),
		now: time.Unix(0, 0).UTC(),
	}
}

// NextFrame implements engine.FrameClock. Each call counts as one wait.
func (c *ManualFrameClock) NextFrame() <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits++
	return c.ch
}

// Waits returns how many times NextFrame was called.
func (c *ManualFrameClock) Waits() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waits
}

// Tick advances the clock by one 60 Hz frame and delivers it.
// Returns false if the clock was stopped or a tick is already pending.
func (c *ManualFrameClock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return false
	}
	c.now = c.now.Add(time.Second / 60)
	select {
	case c.ch <- c.now:
		c.ticks++
		return true
	default:
		return false
	}
}

// Ticks returns how many ticks were delivered.
func (c *ManualFrameClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Stop implements engine.FrameClock. Later ticks are ignored.
func (c *ManualFrameClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

// Stopped reports whether Stop was called.
func (c *ManualFrameClock) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
