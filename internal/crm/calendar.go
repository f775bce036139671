package crm

import "time"

const dayLayout = "2006-01-02"

// Calendar answers "today" questions in the business time zone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar builds a Calendar in loc; a nil now uses time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Calendar{loc: loc, now: now}
}

// Location returns the business time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Now returns the current time in the business time zone.
func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now().In(c.Location())
	}
	return c.now().In(c.Location())
}

// Today returns the current day as YYYY-MM-DD.
func (c Calendar) Today() string { return c.Now().Format(dayLayout) }

// Yesterday returns the previous day as YYYY-MM-DD.
func (c Calendar) Yesterday() string { return c.Now().AddDate(0, 0, -1).Format(dayLayout) }

// Day formats t as a business day.
func (c Calendar) Day(t time.Time) string { return t.In(c.Location()).Format(dayLayout) }

// Stamp formats t as a backend timestamp.
func (c Calendar) Stamp(t time.Time) string { return t.UTC().Format(TimestampLayout) }

// DaysBetween counts whole days from day a to day b (both YYYY-MM-DD).
func DaysBetween(a, b string) int {
	ta, errA := time.Parse(dayLayout, a)
	tb, errB := time.Parse(dayLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
