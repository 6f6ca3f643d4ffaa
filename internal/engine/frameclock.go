package engine

import "time"

// DefaultFPS is the display cadence used when none is configured.
const DefaultFPS = 60

// FrameClock paces processing to the display.
//
// NextFrame returns a channel that fires at the next display frame. The
// Scope only selects on it while a frame is pending, so an idle scope never
// wakes up for frames it has nothing to draw in.
type FrameClock interface {
	NextFrame() <-chan time.Time
	Stop()
}

// IntervalClock is a FrameClock backed by a time.Ticker.
// Ticks that arrive while nothing is pending are dropped by the ticker's
// one-slot channel.
type IntervalClock struct {
	ticker *time.Ticker
}

// NewIntervalClock creates a clock firing fps times per second.
// Non-positive fps selects DefaultFPS.
func NewIntervalClock(fps int) *IntervalClock {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &IntervalClock{ticker: time.NewTicker(time.Second / time.Duration(fps))}
}

// NextFrame implements FrameClock.
func (c *IntervalClock) NextFrame() <-chan time.Time {
	return c.ticker.C
}

// Stop implements FrameClock.
func (c *IntervalClock) Stop() {
	c.ticker.Stop()
}
