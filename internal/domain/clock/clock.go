// Package clock provides the pull-based policy clock. Time-driven rules
// (auto-consent, consent expiry) are computed at read time against an
// injectable clock instead of registering timers, so policy evaluation
// stays deterministic and replayable in tests.
package clock

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real system time
type SystemClock struct{}

// Now returns the current system time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ElapsedDays returns the number of whole days between t and the clock's
// current time. Negative for timestamps in the future.
func ElapsedDays(c Clock, t time.Time) int {
	return int(c.Now().Sub(t).Hours() / 24)
}

// HasExpired reports whether more than windowDays whole days have passed
// since t. The boundary day itself does not expire: a 7-day window is
// still open at exactly 7 elapsed days.
func HasExpired(c Clock, t time.Time, windowDays int) bool {
	return ElapsedDays(c, t) > windowDays
}

// HasPassed reports whether the clock is past the given instant.
func HasPassed(c Clock, t time.Time) bool {
	return c.Now().After(t)
}
