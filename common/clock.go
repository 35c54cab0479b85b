package common

import "time"

// Clock is the single source of "now" for business logic. Every scheduler
// trigger, sync-run timestamp, and cooldown check goes through one of these
// so the whole service reasons about time in one timezone, never the host's.
type Clock struct {
	loc *time.Location
}

// NewClock builds a Clock fixed to the named IANA timezone (e.g.
// "Europe/Kaliningrad"). Falls back to UTC if the zone can't be loaded so a
// bad config value degrades instead of panicking at startup.
func NewClock(locationName string) *Clock {
	loc, err := time.LoadLocation(locationName)
	if err != nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's configured location.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the clock's timezone, for handing to cron or other
// time-aware components that need to evaluate schedules in local time.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns midnight of the current day in the clock's location.
func (c *Clock) Today() time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
}
