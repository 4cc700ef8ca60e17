// Package clock turns wall-clock instants into calendar dates.
//
// Schedules are due on days, not instants. A date is represented as a
// time.Time at midnight UTC whose Y/M/D are the calendar date in the
// facility's time zone, so dates compare and format the same way no matter
// which zone produced them.
package clock

import "time"

// DateLayout is the storage and wire format for calendar dates.
const DateLayout = "2006-01-02"

// Clock reports the current instant and the zone "today" is measured in.
type Clock struct {
	now func() time.Time
	loc *time.Location
}

// New returns a Clock in loc. A nil now uses time.Now; a nil loc uses UTC.
func New(now func() time.Time, loc *time.Location) Clock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return Clock{now: now, loc: loc}
}

// Fixed returns a Clock frozen at t, for tests.
func Fixed(t time.Time) Clock {
	return New(func() time.Time { return t }, t.Location())
}

// Now returns the current instant.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Location returns the zone the clock measures dates in.
func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Today returns the current calendar date.
func (c Clock) Today() time.Time {
	return DateOf(c.Now().In(c.Location()))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddDays moves a date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return DateOf(d).AddDate(0, 0, n)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// Format renders a date as YYYY-MM-DD.
func Format(d time.Time) string {
	return d.Format(DateLayout)
}

// Parse reads a YYYY-MM-DD date.
func Parse(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
