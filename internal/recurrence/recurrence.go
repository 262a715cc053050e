// Package recurrence implements the repeat rules a reminder series can carry
// and the computation of the next concrete occurrence.
package recurrence

import (
	"fmt"
	"time"
)

// Type identifies a recurrence pattern.
type Type string

const (
	Daily    Type = "daily"
	Weekly   Type = "weekly"
	Weekdays Type = "weekdays"
	Weekends Type = "weekends"
	Monthly  Type = "monthly"
)

// Valid reports whether t is a known recurrence type.
func (t Type) Valid() bool {
	switch t {
	case Daily, Weekly, Weekdays, Weekends, Monthly:
		return true
	}
	return false
}

// Rule describes how a reminder series regenerates its next occurrence.
// Day is a weekday (time.Weekday, 0=Sunday) for Weekly rules and a
// day-of-month (1-31) for Monthly rules; other types ignore it.
type Rule struct {
	Type Type
	Day  int
	// Hour and Minute are the local time-of-day the reminder fires at.
	Hour   int
	Minute int
}

// matchesDate reports whether the rule triggers on the given local date.
func (r Rule) matchesDate(d time.Time) bool {
	switch r.Type {
	case Daily:
		return true
	case Weekly:
		return d.Weekday() == time.Weekday(r.Day)
	case Weekdays:
		wd := d.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case Weekends:
		wd := d.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	case Monthly:
		// Months with fewer days clamp to their last day.
		target := r.Day
		if last := lastDayOfMonth(d); target > last {
			target = last
		}
		return d.Day() == target
	}
	return false
}

// Next returns the first occurrence strictly after the given instant, in the
// supplied location. The search is bounded to a year; a rule that never
// matches within that horizon is an error.
func (r Rule) Next(after time.Time, loc *time.Location) (time.Time, error) {
	if !r.Type.Valid() {
		return time.Time{}, fmt.Errorf("unknown recurrence type %q", r.Type)
	}
	if loc == nil {
		loc = time.UTC
	}

	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), r.Hour, r.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}

	for i := 0; i < 366; i++ {
		if r.matchesDate(candidate) {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no occurrence of %s rule within a year", r.Type)
}

// Describe renders the rule for user-facing confirmations, e.g.
// "every day at 9:00 AM" or "every Monday at 8:30 AM".
func (r Rule) Describe() string {
	at := formatClock(r.Hour, r.Minute)
	switch r.Type {
	case Daily:
		return "every day at " + at
	case Weekly:
		return fmt.Sprintf("every %s at %s", time.Weekday(r.Day), at)
	case Weekdays:
		return "every weekday at " + at
	case Weekends:
		return "every weekend at " + at
	case Monthly:
		return fmt.Sprintf("on day %d of every month at %s", r.Day, at)
	}
	return "at " + at
}

func lastDayOfMonth(d time.Time) int {
	return time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, d.Location()).Day()
}

func formatClock(hour, minute int) string {
	suffix := "AM"
	h := hour
	switch {
	case h == 0:
		h = 12
	case h == 12:
		suffix = "PM"
	case h > 12:
		h -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}
