package testfixtures

import (
	"sync"
	"time"
)

// Clock is a controllable time source. With a non-zero step every reading
// advances the clock, so consecutive writes get distinct timestamps.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// NewSteppingClock returns a clock that moves forward by step after each reading.
func NewSteppingClock(start time.Time, step time.Duration) *Clock {
	c := NewClock(start)
	c.step = step
	return c
}

// Now returns the clock reading, then applies the step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// NowFunc exposes Now for constructors taking a func() time.Time.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
