package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// The filesystem backend stamps history mtimes through it; production uses
// the real clock, tests inject a fake for deterministic metadata.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the active clock as UTC epoch seconds.
func Now() int64 {
	return clock.Now().UTC().Unix()
}
