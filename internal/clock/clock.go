// Package clock abstracts wall-clock access so the engine's date-sensitive
// logic (session dedup by calendar day, the rolling edit window) can be
// pinned in tests.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock in server-local time.
type System struct{}

// Now returns the current local time.
func (System) Now() time.Time { return time.Now() }

// Today truncates a clock reading to its calendar date in local time.
func Today(c Clock) time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// Fixed is a clock frozen at a single instant, for tests.
type Fixed struct {
	T time.Time
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time { return f.T }
