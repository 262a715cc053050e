package recurrence

import (
	"testing"
	"time"
)

func TestNextDaily(t *testing.T) {
	rule := Rule{Type: Daily, Hour: 9, Minute: 0}
	loc := time.UTC

	// Before today's fire time: today.
	after := time.Date(2026, 3, 10, 8, 0, 0, 0, loc)
	next, err := rule.Next(after, loc)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// At the fire time exactly: strictly after, so tomorrow.
	next, err = rule.Next(want, loc)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Equal(want.AddDate(0, 0, 1)) {
		t.Errorf("next = %v, want %v", next, want.AddDate(0, 0, 1))
	}
}

func TestNextWeekly(t *testing.T) {
	// Every Monday at 8:30. March 10 2026 is a Tuesday.
	rule := Rule{Type: Weekly, Day: int(time.Monday), Hour: 8, Minute: 30}
	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	next, err := rule.Next(after, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 16, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextWeekdaysSkipsWeekend(t *testing.T) {
	// March 13 2026 is a Friday.
	rule := Rule{Type: Weekdays, Hour: 7, Minute: 0}
	after := time.Date(2026, 3, 13, 10, 0, 0, 0, time.UTC)
	next, err := rule.Next(after, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if next.Weekday() != time.Monday {
		t.Errorf("next weekday = %v, want Monday", next.Weekday())
	}
}

func TestNextWeekends(t *testing.T) {
	// March 11 2026 is a Wednesday; next weekend day is Saturday the 14th.
	rule := Rule{Type: Weekends, Hour: 10, Minute: 0}
	after := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	next, err := rule.Next(after, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextMonthlyClampsShortMonths(t *testing.T) {
	// Day 31 in April must clamp to the 30th.
	rule := Rule{Type: Monthly, Day: 31, Hour: 12, Minute: 0}
	after := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	next, err := rule.Next(after, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// February in a non-leap year clamps to the 28th.
	after = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	next, err = rule.Next(after, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if next.Day() != 28 || next.Month() != time.February {
		t.Errorf("next = %v, want Feb 28", next)
	}
}

func TestNextHonorsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	rule := Rule{Type: Daily, Hour: 9, Minute: 0}
	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) // 07:00 in New York
	next, err := rule.Next(after, loc)
	if err != nil {
		t.Fatal(err)
	}
	if next.Hour() != 9 || next.Location() != loc {
		t.Errorf("next = %v, want 9:00 in %v", next, loc)
	}
	if next.Day() != 10 {
		t.Errorf("next day = %d, want 10 (9am NY is still ahead)", next.Day())
	}
}

func TestNextUnknownType(t *testing.T) {
	rule := Rule{Type: "fortnightly", Hour: 9}
	if _, err := rule.Next(time.Now(), time.UTC); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		rule Rule
		want string
	}{
		{Rule{Type: Daily, Hour: 9, Minute: 0}, "every day at 9:00 AM"},
		{Rule{Type: Weekly, Day: int(time.Monday), Hour: 8, Minute: 30}, "every Monday at 8:30 AM"},
		{Rule{Type: Weekdays, Hour: 17, Minute: 15}, "every weekday at 5:15 PM"},
		{Rule{Type: Monthly, Day: 1, Hour: 0, Minute: 0}, "on day 1 of every month at 12:00 AM"},
		{Rule{Type: Weekends, Hour: 12, Minute: 0}, "every weekend at 12:00 PM"},
	}
	for _, tt := range tests {
		if got := tt.rule.Describe(); got != tt.want {
			t.Errorf("Describe(%+v) = %q, want %q", tt.rule, got, tt.want)
		}
	}
}
