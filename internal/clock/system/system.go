// Package system provides the wall clock used to stamp snapshots and commands.
package system

import "time"

// Clock implements hours.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC so log records never carry a local offset.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
