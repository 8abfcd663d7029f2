// Package clock supplies the canonical "now" and calendar-day helpers.
//
// Calendar days are carried as time.Time values at midnight UTC, which is
// what pgx produces for a DATE column. Instants are interpreted in the
// clinic's configured location before being reduced to a day.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed always returns T.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }

// Day returns the calendar day of t as observed in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is Day(c.Now(), loc).
func Today(c Clock, loc *time.Location) time.Time {
	return Day(c.Now(), loc)
}

// NormalizeDay drops any time-of-day and zone from a calendar day value.
func NormalizeDay(d time.Time) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

// At combines a calendar day with minutes past midnight into an instant in loc.
func At(day time.Time, minutes int, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, loc)
}

// DaysInclusive counts calendar days from start through end. It returns 0
// when end precedes start.
func DaysInclusive(start, end time.Time) int {
	s, e := NormalizeDay(start), NormalizeDay(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
