package core

import "time"

// Clock is the single authoritative time source. The core never calls
// time.Now directly; deadlines and window checks all compare against the
// injected clock, and tests drive it explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
