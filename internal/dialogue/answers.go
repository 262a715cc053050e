package dialogue

import (
	"regexp"
	"strconv"
	"strings"
)

// cancelPhrases abort whatever question is outstanding. Matched against the
// whole normalized message, never as a substring.
var cancelPhrases = map[string]bool{
	"cancel":     true,
	"nevermind":  true,
	"never mind": true,
	"forget it":  true,
	"skip":       true,
	"no thanks":  true,
	"nope":       true,
	"stop":       true,
	"undo":       true,
}

var undoCommands = map[string]bool{
	"undo":           true,
	"undo that":      true,
	"undo last":      true,
	"cancel that":    true,
	"delete that":    true,
	"remove that":    true,
	"cancel last":    true,
	"delete last":    true,
	"undo my last":   true,
	"cancel my last": true,
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(text), ".!?")))
}

// IsCancel reports whether the message is a bare cancellation phrase.
func IsCancel(text string) bool {
	return cancelPhrases[normalize(text)]
}

// IsUndo reports whether the message is an undo command on a fresh turn.
func IsUndo(text string) bool {
	return undoCommands[normalize(text)]
}

var yesWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "confirm": true, "do it": true,
	"correct": true, "right": true,
}

var noWords = map[string]bool{
	"no": true, "n": true, "nah": true, "dont": true, "don't": true,
	"negative": true, "wrong": true,
}

// parseYesNo recognizes a bare confirmation or denial.
func parseYesNo(text string) (yes, ok bool) {
	norm := normalize(text)
	if yesWords[norm] {
		return true, true
	}
	if noWords[norm] {
		return false, true
	}
	return false, false
}

// parseAMPM recognizes a bare meridiem answer: "am", "pm", "in the morning",
// "afternoon", "evening", "at night".
func parseAMPM(text string) (pm, ok bool) {
	norm := normalize(text)
	norm = strings.TrimPrefix(norm, "in the ")
	norm = strings.TrimPrefix(norm, "at ")
	switch norm {
	case "am", "a.m", "a.m.", "morning":
		return false, true
	case "pm", "p.m", "p.m.", "afternoon", "evening", "night":
		return true, true
	}
	return false, false
}

// ClockAnswer is a parsed clock time from a clarification answer.
type ClockAnswer struct {
	Hour   int // 0-23 when Known, 1-12 otherwise
	Minute int
	// Known means the meridiem is settled (explicit am/pm, 24h hour, or
	// minute-bearing 24h form). An unknown answer re-enters AM/PM
	// clarification.
	Known bool
}

var clockRe = regexp.MustCompile(`^(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|a\.m\.?|pm|p\.m\.?)?$`)

// parseClock recognizes a bare time answer: "4pm", "16:00", "4:30", "at 7am",
// "noon", "midnight". ok is false when the message is not a time at all.
func parseClock(text string) (ClockAnswer, bool) {
	norm := normalize(text)
	switch norm {
	case "noon", "midday", "12pm":
		return ClockAnswer{Hour: 12, Known: true}, true
	case "midnight", "12am":
		return ClockAnswer{Hour: 0, Known: true}, true
	}
	m := clockRe.FindStringSubmatch(norm)
	if m == nil {
		return ClockAnswer{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return ClockAnswer{}, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return ClockAnswer{}, false
		}
	}
	switch {
	case strings.HasPrefix(m[3], "a"):
		if hour > 12 || hour == 0 {
			return ClockAnswer{}, false
		}
		if hour == 12 {
			hour = 0
		}
		return ClockAnswer{Hour: hour, Minute: minute, Known: true}, true
	case strings.HasPrefix(m[3], "p"):
		if hour > 12 || hour == 0 {
			return ClockAnswer{}, false
		}
		if hour != 12 {
			hour += 12
		}
		return ClockAnswer{Hour: hour, Minute: minute, Known: true}, true
	}
	// No meridiem. 0 and 13-23 are unambiguous 24h clock readings; 1-12 stay
	// ambiguous even with minutes ("4:30" could be either).
	if hour == 0 || hour > 12 {
		return ClockAnswer{Hour: hour, Minute: minute, Known: true}, true
	}
	return ClockAnswer{Hour: hour, Minute: minute, Known: false}, true
}

// parseSelection recognizes a 1-based pick out of n candidates: "2",
// "number 2", "the second one" is out of scope, plain digits only.
func parseSelection(text string, n int) (int, bool) {
	norm := normalize(text)
	norm = strings.TrimPrefix(norm, "number ")
	norm = strings.TrimPrefix(norm, "#")
	pick, err := strconv.Atoi(norm)
	if err != nil || pick < 1 || pick > n {
		return 0, false
	}
	return pick, true
}
