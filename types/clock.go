package types

import (
	"sync"
	"time"
)

// TimeslotLength is the length of one simulation timeslot.
const TimeslotLength = time.Hour

// Clock supplies simulation time. The market never reads the wall clock;
// every time-dependent decision goes through the Clock it was built with.
type Clock interface {
	// Now returns the current simulation instant.
	Now() time.Time
	// CurrentTimeslot returns the index of the timeslot containing Now,
	// counted from the start of the simulation.
	CurrentTimeslot() int
}

// SimClock is a Clock advanced explicitly by the simulation driver.
// It is created once per simulation run.
type SimClock struct {
	mu   sync.RWMutex
	base time.Time
	now  time.Time
}

// NewSimClock returns a clock whose timeslot 0 starts at base.
func NewSimClock(base time.Time) *SimClock {
	base = base.UTC().Truncate(TimeslotLength)
	return &SimClock{base: base, now: base}
}

// Now implements Clock.
func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Base returns the start of timeslot 0.
func (c *SimClock) Base() time.Time { return c.base }

// Set moves the clock to t.
func (c *SimClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *SimClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// CurrentTimeslot implements Clock.
func (c *SimClock) CurrentTimeslot() int {
	return c.TimeslotIndex(c.Now())
}

// TimeslotIndex returns the index of the timeslot containing t.
func (c *SimClock) TimeslotIndex(t time.Time) int {
	return int(t.Sub(c.base) / TimeslotLength)
}

// TimeslotStart returns the instant at which timeslot i begins.
func (c *SimClock) TimeslotStart(i int) time.Time {
	return c.base.Add(time.Duration(i) * TimeslotLength)
}

// StartOfDay truncates t to 00:00 UTC of the same day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// HoursSinceEpoch returns the number of whole hours between the Unix epoch and t.
func HoursSinceEpoch(t time.Time) int64 {
	return t.UnixMilli() / TimeslotLength.Milliseconds()
}
