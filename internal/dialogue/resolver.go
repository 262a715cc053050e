package dialogue

import (
	"context"
	"fmt"

	"github.com/MinderBot/MinderBot/internal/interpret"
)

// Outcome classifies what an inbound message means for an outstanding
// question.
type Outcome int

const (
	// OutcomeCancelled: the user aborted the question.
	OutcomeCancelled Outcome = iota
	// OutcomeResolved: the message directly answers the question; Answer is set.
	OutcomeResolved
	// OutcomeOverridden: the message is a fully-specified new reminder
	// request; Intent is set and the question is abandoned in its favor.
	// No other intent displaces an outstanding question.
	OutcomeOverridden
	// OutcomeRePrompt: the message neither answers nor overrides; the
	// question is re-asked verbatim and the state left untouched.
	OutcomeRePrompt
)

// Answer is the parsed direct answer to a pending question. Exactly the
// fields relevant to the question's kind are set.
type Answer struct {
	// Yes is the confirmation verdict for confirm_low_confidence and
	// confirm_delete.
	Yes bool
	// PM is the meridiem verdict for clarify_ampm.
	PM bool
	// Clock is the time verdict for the clarify_time family. If Clock.Known
	// is false the answer itself is ambiguous and the caller asks AM or PM.
	Clock ClockAnswer
	// Selection is the 1-based pick for select_among_matches.
	Selection int
}

// Resolution is the resolver's verdict on one turn.
type Resolution struct {
	Outcome Outcome
	Answer  Answer
	// Intent is the interpreter result, set for OutcomeOverridden and also
	// carried on OutcomeRePrompt for logging.
	Intent *interpret.Result
	// Prompt is the question to re-send for OutcomeRePrompt.
	Prompt string
}

// Resolver decides what a message means for an outstanding question. It
// never mutates state; the caller applies the outcome.
type Resolver struct {
	interp interpret.Interpreter
}

// NewResolver builds a resolver around the given interpreter.
func NewResolver(interp interpret.Interpreter) *Resolver {
	return &Resolver{interp: interp}
}

// Resolve classifies text against the pending question st. Classification
// order is fixed: cancellation, direct answer, new-reminder override,
// re-prompt.
func (r *Resolver) Resolve(ctx context.Context, st *PendingState, text string, history []interpret.ContextMessage) (*Resolution, error) {
	if IsCancel(text) {
		return &Resolution{Outcome: OutcomeCancelled}, nil
	}

	if ans, ok := directAnswer(st, text); ok {
		return &Resolution{Outcome: OutcomeResolved, Answer: ans}, nil
	}

	res, err := r.interp.Interpret(ctx, text, history)
	if err != nil {
		return nil, fmt.Errorf("interpret during pending %s: %w", st.Kind, err)
	}
	if overrides(res) {
		return &Resolution{Outcome: OutcomeOverridden, Intent: res}, nil
	}

	return &Resolution{
		Outcome: OutcomeRePrompt,
		Intent:  res,
		Prompt:  RePrompt(st),
	}, nil
}

// overrides reports whether res may displace an outstanding question. Only a
// fully-specified new reminder request qualifies; any other request — even a
// clean one like adding a list item — waits its turn behind the question, so
// a stray remark can't silently abandon it.
func overrides(res *interpret.Result) bool {
	if !res.Actionable() || res.Action != interpret.ActionCreateReminder {
		return false
	}
	f := res.Fields
	if f.ReminderText == "" || f.AmbiguousHour != 0 || f.VagueTime {
		return false
	}
	return f.Time != ""
}

// directAnswer tries the answer grammar the pending kind accepts.
func directAnswer(st *PendingState, text string) (Answer, bool) {
	switch st.Kind {
	case KindClarifyAMPM:
		if pm, ok := parseAMPM(text); ok {
			return Answer{PM: pm}, true
		}
		// A full time restated with a meridiem also settles it ("4pm").
		if clock, ok := parseClock(text); ok && clock.Known {
			return Answer{Clock: clock}, true
		}
	case KindClarifyTime, KindClarifyDateTime, KindClarifySpecificTime:
		if clock, ok := parseClock(text); ok {
			return Answer{Clock: clock}, true
		}
	case KindConfirmLowConfidence, KindConfirmDelete:
		if yes, ok := parseYesNo(text); ok {
			return Answer{Yes: yes}, true
		}
	case KindSelectAmongMatches:
		if pick, ok := parseSelection(text, len(st.Payload.Candidates)); ok {
			return Answer{Selection: pick}, true
		}
	}
	return Answer{}, false
}

// RePrompt reconstructs the outstanding question so a confused user always
// gets an actionable cue, not a bare repetition.
func RePrompt(st *PendingState) string {
	switch st.Kind {
	case KindClarifyAMPM:
		h := st.Payload.AmbiguousHour
		return fmt.Sprintf("Just to check, did you mean %d AM or %d PM for %q?", h, h, st.Payload.ReminderText)
	case KindClarifyTime:
		return fmt.Sprintf("What time should I remind you to %q? You can say something like 3pm or 15:00.", st.Payload.ReminderText)
	case KindClarifyDateTime:
		return fmt.Sprintf("When should I remind you to %q? Give me a time, like 3pm, and a day if it's not today.", st.Payload.ReminderText)
	case KindClarifySpecificTime:
		return fmt.Sprintf("I still need an exact time for %q. For example 6:30pm.", st.Payload.ReminderText)
	case KindConfirmLowConfidence, KindConfirmDelete:
		return st.Prompt + " Please reply YES or NO, or CANCEL to drop it."
	case KindSelectAmongMatches:
		return st.Prompt + fmt.Sprintf(" Reply with a number between 1 and %d, or CANCEL.", len(st.Payload.Candidates))
	}
	return st.Prompt
}
