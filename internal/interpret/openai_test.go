package interpret

import "testing"

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Result
	}{
		{
			"plain json",
			`{"action":"create_reminder","fields":{"reminder_text":"call mom","time":"16:00"},"confidence":90}`,
			Result{Action: ActionCreateReminder, Fields: Fields{ReminderText: "call mom", Time: "16:00"}, Confidence: 90},
		},
		{
			"json fence",
			"```json\n{\"action\":\"save_memory\",\"fields\":{\"memory_text\":\"gate code 4312\"},\"confidence\":75}\n```",
			Result{Action: ActionSaveMemory, Fields: Fields{MemoryText: "gate code 4312"}, Confidence: 75},
		},
		{
			"bare fence",
			"```\n{\"action\":\"chat\",\"confidence\":30}\n```",
			Result{Action: ActionChat, Confidence: 30},
		},
		{
			"confidence clamped high",
			`{"action":"list_reminders","confidence":140}`,
			Result{Action: ActionListReminders, Confidence: 100},
		},
		{
			"confidence clamped low",
			`{"action":"list_reminders","confidence":-5}`,
			Result{Action: ActionListReminders, Confidence: 0},
		},
		{
			"ambiguous hour slot",
			`{"action":"create_reminder","fields":{"reminder_text":"water plants","ambiguous_hour":4},"confidence":85}`,
			Result{Action: ActionCreateReminder, Fields: Fields{ReminderText: "water plants", AmbiguousHour: 4}, Confidence: 85},
		},
		{
			"prose instead of json",
			"Sure! I'll set that reminder for you.",
			Result{Unparseable: true},
		},
		{
			"empty reply",
			"",
			Result{Unparseable: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.raw)
			if *got != tt.want {
				t.Errorf("ParseVerdict(%q) = %+v, want %+v", tt.raw, *got, tt.want)
			}
		})
	}
}

func TestActionable(t *testing.T) {
	tests := []struct {
		name string
		res  *Result
		want bool
	}{
		{"nil", nil, false},
		{"unparseable", &Result{Unparseable: true, Action: ActionCreateReminder}, false},
		{"chat", &Result{Action: ActionChat, Confidence: 90}, false},
		{"empty action", &Result{Confidence: 90}, false},
		{"reminder", &Result{Action: ActionCreateReminder, Confidence: 10}, true},
		{"memory search", &Result{Action: ActionSearchMemory, Confidence: 50}, true},
	}
	for _, tt := range tests {
		if got := tt.res.Actionable(); got != tt.want {
			t.Errorf("%s: Actionable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
