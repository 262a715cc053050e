// Package dialogue implements the per-user dialogue state machine: the
// single outstanding question a user may have (PendingState), the resolver
// that decides what an inbound message means for it, and the gate that
// decides whether an interpreted action executes, asks, or confirms.
package dialogue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MinderBot/MinderBot/internal/interpret"
	"github.com/MinderBot/MinderBot/internal/store"
)

// Kind enumerates the seven mutually exclusive pending-state variants.
type Kind string

const (
	KindClarifyAMPM          Kind = "clarify_ampm"
	KindClarifyTime          Kind = "clarify_time"
	KindClarifyDateTime      Kind = "clarify_date_time"
	KindClarifySpecificTime  Kind = "clarify_specific_time"
	KindConfirmLowConfidence Kind = "confirm_low_confidence"
	KindConfirmDelete        Kind = "confirm_delete"
	KindSelectAmongMatches   Kind = "select_among_matches"
)

// CandidateKind identifies what a disambiguation candidate refers to.
type CandidateKind string

const (
	CandidateReminder  CandidateKind = "reminder"
	CandidateRecurring CandidateKind = "recurring"
	CandidateListItem  CandidateKind = "list_item"
	CandidateMemory    CandidateKind = "memory"
)

// Candidate is one disambiguation target, shown to the user by label.
type Candidate struct {
	Kind CandidateKind `json:"kind"`
	// ID addresses reminders, recurring series and memories; ItemID
	// addresses list items.
	ID     string `json:"id,omitempty"`
	ItemID int64  `json:"item_id,omitempty"`
	Label  string `json:"label"`
}

// Payload carries the partially parsed fields a pending state needs to
// complete once the user answers.
type Payload struct {
	// ReminderText, Date and AmbiguousHour are the fragments captured so
	// far for the clarify_* kinds.
	ReminderText  string `json:"reminder_text,omitempty"`
	Date          string `json:"date,omitempty"`
	AmbiguousHour int    `json:"ambiguous_hour,omitempty"`
	Minute        int    `json:"minute,omitempty"`
	// Recurrence and RecurrenceDay keep a repeat request repeating through
	// the clarification round trip.
	Recurrence    string `json:"recurrence,omitempty"`
	RecurrenceDay int    `json:"recurrence_day,omitempty"`
	// Intent is the full interpreter result held for confirm_low_confidence.
	Intent *interpret.Result `json:"intent,omitempty"`
	// Target is the single resolved target for confirm_delete.
	Target *Candidate `json:"target,omitempty"`
	// Candidates is the stably ordered 1..N list for select_among_matches.
	Candidates []Candidate `json:"candidates,omitempty"`
	// FromUndo marks a confirm_delete that came from the undo command, so
	// the undo slot is cleared once the question resolves either way.
	FromUndo bool `json:"from_undo,omitempty"`
}

// PendingState is the one outstanding question the system has asked a user.
// Setting a new one always fully replaces the old.
type PendingState struct {
	Kind      Kind
	Prompt    string
	Payload   Payload
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the soft timeout has passed; an expired state is
// treated as absent so a new message always starts a fresh turn.
func (st *PendingState) Expired(now time.Time) bool {
	return !st.ExpiresAt.IsZero() && now.After(st.ExpiresAt)
}

// Record serializes the state for persistence.
func (st *PendingState) Record(address string) (*store.PendingStateRecord, error) {
	payload, err := json.Marshal(st.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode pending payload: %w", err)
	}
	return &store.PendingStateRecord{
		Address:   address,
		Kind:      string(st.Kind),
		Payload:   payload,
		Prompt:    st.Prompt,
		CreatedAt: st.CreatedAt,
		ExpiresAt: st.ExpiresAt,
	}, nil
}

// StateFromRecord deserializes a persisted pending state.
func StateFromRecord(rec *store.PendingStateRecord) (*PendingState, error) {
	st := &PendingState{
		Kind:      Kind(rec.Kind),
		Prompt:    rec.Prompt,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}
	if len(rec.Payload) > 0 {
		if err := json.Unmarshal(rec.Payload, &st.Payload); err != nil {
			return nil, fmt.Errorf("decode pending payload: %w", err)
		}
	}
	return st, nil
}
