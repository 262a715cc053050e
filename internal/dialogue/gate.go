package dialogue

import (
	"fmt"
	"strings"
	"time"

	"github.com/MinderBot/MinderBot/internal/interpret"
)

// DecisionKind says what the gate wants done with an interpreted action.
type DecisionKind int

const (
	// DecisionExecute: the action is safe and complete, run it now.
	DecisionExecute DecisionKind = iota
	// DecisionAsk: set the attached pending state and send its prompt.
	DecisionAsk
	// DecisionReply: send a terminal reply, no state, nothing executed.
	DecisionReply
)

// Decision is the gate's verdict on one interpreted action.
type Decision struct {
	Kind   DecisionKind
	State  *PendingState
	Reply  string
	Intent *interpret.Result
}

// Gate decides whether an interpreted action executes immediately, needs a
// clarifying question first, or needs an explicit confirmation. Missing
// required fields always outrank a low confidence score: asking for the
// missing piece beats asking "did you mean".
type Gate struct {
	threshold int
	ttl       time.Duration
	now       func() time.Time
}

// NewGate builds a gate with the given confidence threshold (0-100) and
// pending-state lifetime.
func NewGate(threshold int, ttl time.Duration) *Gate {
	return &Gate{threshold: threshold, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source for callers that virtualize time.
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Gate) newState(kind Kind, prompt string, payload Payload) *PendingState {
	now := g.now()
	return &PendingState{
		Kind:      kind,
		Prompt:    prompt,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}
}

// Check gates a fresh interpreted action. Delete actions go through
// Disambiguate instead once their targets are looked up; Check only applies
// the confidence gate to them.
func (g *Gate) Check(res *interpret.Result) *Decision {
	if res.Action == interpret.ActionCreateReminder {
		if d := g.checkReminderFields(res); d != nil {
			return d
		}
	}
	if res.Confidence < g.threshold {
		prompt := fmt.Sprintf("Just to confirm: %s. Is that right?", describeIntent(res))
		st := g.newState(KindConfirmLowConfidence, prompt, Payload{Intent: res})
		return &Decision{Kind: DecisionAsk, State: st}
	}
	return &Decision{Kind: DecisionExecute, Intent: res}
}

// checkReminderFields returns an ask decision when a reminder is missing a
// usable time, nil when the fields are complete.
func (g *Gate) checkReminderFields(res *interpret.Result) *Decision {
	f := res.Fields
	payload := Payload{
		ReminderText:  f.ReminderText,
		Date:          f.Date,
		Recurrence:    f.Recurrence,
		RecurrenceDay: f.RecurrenceDay,
	}
	if f.Recurrence != "" {
		// A repeat rule carries its own dates; only the clock time can be
		// missing.
		if f.Time == "" && f.AmbiguousHour == 0 && !f.VagueTime {
			st := g.newState(KindClarifyTime,
				fmt.Sprintf("What time should the %s reminder to %q go out?", f.Recurrence, f.ReminderText),
				payload)
			return &Decision{Kind: DecisionAsk, State: st}
		}
	}
	switch {
	case f.VagueTime:
		st := g.newState(KindClarifySpecificTime,
			fmt.Sprintf("What exact time works for %q? For example 6:30pm.", f.ReminderText),
			payload)
		return &Decision{Kind: DecisionAsk, State: st}
	case f.AmbiguousHour != 0:
		payload.AmbiguousHour = f.AmbiguousHour
		st := g.newState(KindClarifyAMPM,
			fmt.Sprintf("Did you mean %d AM or %d PM for %q?", f.AmbiguousHour, f.AmbiguousHour, f.ReminderText),
			payload)
		return &Decision{Kind: DecisionAsk, State: st}
	case f.Time == "" && f.Date == "":
		st := g.newState(KindClarifyDateTime,
			fmt.Sprintf("When should I remind you to %q? Give me a time, like 3pm, and a day if it's not today.", f.ReminderText),
			payload)
		return &Decision{Kind: DecisionAsk, State: st}
	case f.Time == "":
		st := g.newState(KindClarifyTime,
			fmt.Sprintf("What time should I remind you to %q? You can say something like 3pm or 15:00.", f.ReminderText),
			payload)
		return &Decision{Kind: DecisionAsk, State: st}
	}
	return nil
}

// Disambiguate gates a destructive action once its candidate targets are
// known. verb is the single-word operation for the prompts ("cancel",
// "remove", "forget"); candidate labels are self-describing.
func (g *Gate) Disambiguate(verb string, cands []Candidate, fromUndo bool) *Decision {
	switch len(cands) {
	case 0:
		return &Decision{Kind: DecisionReply,
			Reply: "I couldn't find anything matching that, so there's nothing to " + verb + "."}
	case 1:
		c := cands[0]
		st := g.newState(KindConfirmDelete,
			fmt.Sprintf("Should I %s %s?", verb, c.Label),
			Payload{Target: &c, FromUndo: fromUndo})
		return &Decision{Kind: DecisionAsk, State: st}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matches. Which one should I %s?\n", len(cands), verb)
	for i, c := range cands {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Label)
	}
	b.WriteString("Reply with a number, or CANCEL.")
	st := g.newState(KindSelectAmongMatches, b.String(),
		Payload{Candidates: cands, FromUndo: fromUndo})
	return &Decision{Kind: DecisionAsk, State: st}
}

// AskAMPM builds the follow-up question used when a time answer was itself
// ambiguous ("4:30" with no AM or PM). The rest of the payload — including
// any recurrence — rides along unchanged.
func (g *Gate) AskAMPM(p Payload, hour, minute int) *PendingState {
	p.AmbiguousHour = hour
	p.Minute = minute
	return g.newState(KindClarifyAMPM,
		fmt.Sprintf("Did you mean %d AM or %d PM for %q?", hour, hour, p.ReminderText),
		p)
}

// describeIntent paraphrases an interpreted action for a confirmation
// question.
func describeIntent(res *interpret.Result) string {
	f := res.Fields
	switch res.Action {
	case interpret.ActionCreateReminder:
		when := ""
		if f.Date != "" {
			when = " on " + f.Date
		}
		if f.Time != "" {
			when += " at " + f.Time
		}
		if f.Recurrence != "" {
			when += " repeating " + f.Recurrence
		}
		return fmt.Sprintf("you want a reminder to %q%s", f.ReminderText, when)
	case interpret.ActionDeleteReminder:
		return fmt.Sprintf("you want to delete the reminder about %q", f.Query)
	case interpret.ActionListReminders:
		return "you want to see your upcoming reminders"
	case interpret.ActionCreateList:
		return fmt.Sprintf("you want a new list called %q", f.ListName)
	case interpret.ActionAddListItem:
		return fmt.Sprintf("you want to add %q to your %s list", f.Item, f.ListName)
	case interpret.ActionShowList:
		return fmt.Sprintf("you want to see your %s list", f.ListName)
	case interpret.ActionDeleteListItem:
		return fmt.Sprintf("you want to remove %q from your %s list", f.Query, f.ListName)
	case interpret.ActionSaveMemory:
		return fmt.Sprintf("you want me to remember %q", f.MemoryText)
	case interpret.ActionSearchMemory:
		return fmt.Sprintf("you want me to look up %q", f.Query)
	case interpret.ActionDeleteMemory:
		return fmt.Sprintf("you want me to forget %q", f.Query)
	}
	return "you want " + string(res.Action)
}
