package lifecycle

import "time"

const day = 24 * time.Hour

// Clock does the recovery window arithmetic. Every timestamp it hands out is
// UTC with microsecond precision, the precision the store keeps.
type Clock struct {
	window time.Duration
	now    func() time.Time
}

func NewClock(windowDays int) Clock {
	return Clock{
		window: time.Duration(windowDays) * day,
		now:    time.Now,
	}
}

// WithNow returns a copy of c reading time from now.
func (c Clock) WithNow(now func() time.Time) Clock {
	c.now = now
	return c
}

func (c Clock) Window() time.Duration {
	return c.window
}

func (c Clock) Now() time.Time {
	return Normalize(c.now())
}

// Cutoff is the oldest timestamp still inside the window at now.
func (c Clock) Cutoff(now time.Time) time.Time {
	return Normalize(now).Add(-c.window)
}

// WithinWindow reports whether an entity deleted at deletedAt can still be
// reactivated at now. The boundary itself is inside the window.
func (c Clock) WithinWindow(deletedAt, now time.Time) bool {
	return Normalize(now).Sub(deletedAt) <= c.window
}

// PastWindow reports whether deletedAt is at or before the cutoff, the
// predicate shared by the cascade and purge sweeps.
func (c Clock) PastWindow(deletedAt, now time.Time) bool {
	return !deletedAt.After(c.Cutoff(now))
}

func (c Clock) RecoverableUntil(deletedAt time.Time) time.Time {
	return deletedAt.Add(c.window)
}

func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
