package router

import (
	"fmt"
	"time"

	"github.com/MinderBot/MinderBot/internal/store"
)

// friendlyWhen renders a due time relative to now, both in the user's
// location: "today at 4:00 PM", "tomorrow at 9:00 AM", or
// "on Saturday, August 23 at 4:00 PM".
func friendlyWhen(due, now time.Time) string {
	at := due.Format("3:04 PM")
	dueDay := due.Year()*1000 + due.YearDay()
	nowDay := now.Year()*1000 + now.YearDay()
	switch dueDay - nowDay {
	case 0:
		return "today at " + at
	case 1:
		return "tomorrow at " + at
	}
	return fmt.Sprintf("on %s at %s", due.Format("Monday, January 2"), at)
}

func clockIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("3:04 PM")
}

// reminderLabel names a reminder for prompts and candidate lists.
func reminderLabel(rem *store.Reminder, loc *time.Location) string {
	due := rem.DueAt.In(loc)
	return fmt.Sprintf("the reminder to %s (%s at %s)",
		rem.Body, due.Format("Mon Jan 2"), due.Format("3:04 PM"))
}
