// Package system provides a real clock implementation.
package system

import (
	"time"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// Clock implements feed.Clock using time.Now.
type Clock struct{}

var _ feed.Clock = Clock{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock stuck at one instant, for tests and reproducible previews.
type Fixed time.Time

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
