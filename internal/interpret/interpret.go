// Package interpret defines the natural-language interpreter collaborator:
// raw text plus recent context in, a structured action with a confidence
// score out. The rest of the system depends only on the Interpreter
// interface; the language understanding itself lives behind it.
package interpret

import "context"

// Action identifies what the user asked for.
type Action string

const (
	ActionCreateReminder Action = "create_reminder"
	ActionDeleteReminder Action = "delete_reminder"
	ActionListReminders  Action = "list_reminders"
	ActionCreateList     Action = "create_list"
	ActionAddListItem    Action = "add_list_item"
	ActionShowList       Action = "show_list"
	ActionDeleteListItem Action = "delete_list_item"
	ActionSaveMemory     Action = "save_memory"
	ActionSearchMemory   Action = "search_memory"
	ActionDeleteMemory   Action = "delete_memory"
	ActionChat           Action = "chat"
)

// Fields carries the slots the interpreter extracted. Zero values mean the
// slot was absent from the utterance.
type Fields struct {
	// ReminderText is what to be reminded of ("call mom").
	ReminderText string `json:"reminder_text,omitempty"`
	// Date is a resolved calendar date, YYYY-MM-DD.
	Date string `json:"date,omitempty"`
	// Time is a resolved 24h clock time, HH:MM.
	Time string `json:"time,omitempty"`
	// AmbiguousHour is set (1-12) when the user gave an hour with no AM/PM
	// and no other disambiguation.
	AmbiguousHour int `json:"ambiguous_hour,omitempty"`
	// VagueTime is set for expressions like "later" or "soon" that name a
	// time without pinning one down.
	VagueTime bool `json:"vague_time,omitempty"`
	// Recurrence and RecurrenceDay describe a repeat rule if the user asked
	// for one ("every day", "every monday", "weekdays").
	Recurrence    string `json:"recurrence,omitempty"`
	RecurrenceDay int    `json:"recurrence_day,omitempty"`
	// ListName and Item are the list-operation slots.
	ListName string `json:"list_name,omitempty"`
	Item     string `json:"item,omitempty"`
	// MemoryText is the fact to remember for save_memory.
	MemoryText string `json:"memory_text,omitempty"`
	// Query is the search/delete target phrase.
	Query string `json:"query,omitempty"`
}

// Result is the interpreter's verdict on one utterance.
type Result struct {
	Action      Action `json:"action"`
	Fields      Fields `json:"fields"`
	Confidence  int    `json:"confidence"` // 0-100
	Unparseable bool   `json:"unparseable,omitempty"`
}

// Actionable reports whether the result is a genuinely new, self-contained
// request (as opposed to chatter or noise the interpreter could not place).
// Such results override an outstanding question.
func (r *Result) Actionable() bool {
	if r == nil || r.Unparseable {
		return false
	}
	switch r.Action {
	case "", ActionChat:
		return false
	}
	return true
}

// ContextMessage is one turn of recent conversation handed to the
// interpreter for context.
type ContextMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Interpreter resolves free text into a structured action.
type Interpreter interface {
	Interpret(ctx context.Context, text string, history []ContextMessage) (*Result, error)
}
