package dialogue

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var snoozeDurRe = regexp.MustCompile(`^(?:(\d+)\s*h(?:ours?|rs?)?)?\s*(?:(\d+)\s*m?(?:in(?:ute)?s?)?)?$`)

// ParseSnooze recognizes a snooze command: "snooze", "snooze 30",
// "snooze 30m", "snooze 2h", "snooze 1h30m". ok is false when the message is
// not a snooze at all; a zero duration means the user gave no amount and the
// configured default applies. The caller enforces the cap.
func ParseSnooze(text string) (dur time.Duration, ok bool) {
	norm := normalize(text)
	if norm != "snooze" && !strings.HasPrefix(norm, "snooze ") {
		return 0, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(norm, "snooze"))
	if rest == "" {
		return 0, true
	}
	rest = strings.TrimPrefix(rest, "for ")
	m := snoozeDurRe.FindStringSubmatch(rest)
	if m == nil || (m[1] == "" && m[2] == "") {
		// "snooze whatever": still a snooze, just with no usable amount.
		return 0, true
	}
	if m[1] != "" {
		h, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, true
		}
		dur += time.Duration(h) * time.Hour
	}
	if m[2] != "" {
		min, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, true
		}
		dur += time.Duration(min) * time.Minute
	}
	return dur, true
}
