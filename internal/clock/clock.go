// Package clock abstracts wall-clock time so that timestamps written by the
// resolution engine, the activity log and the live feed can be controlled in
// tests.
package clock

import "time"

// Clock supplies the current time.
//
// Implemented by System (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

// System reads the process wall clock. All times are returned in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Or returns c, or System when c is nil.
func Or(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
