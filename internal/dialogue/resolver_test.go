package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/MinderBot/MinderBot/internal/interpret"
)

type fakeInterp struct {
	res   *interpret.Result
	calls int
}

func (f *fakeInterp) Interpret(ctx context.Context, text string, history []interpret.ContextMessage) (*interpret.Result, error) {
	f.calls++
	if f.res != nil {
		return f.res, nil
	}
	return &interpret.Result{Unparseable: true}, nil
}

func ampmState() *PendingState {
	now := time.Now()
	return &PendingState{
		Kind:      KindClarifyAMPM,
		Prompt:    `Did you mean 4 AM or 4 PM for "call mom"?`,
		Payload:   Payload{ReminderText: "call mom", AmbiguousHour: 4},
		CreatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
}

func TestResolveCancellation(t *testing.T) {
	fi := &fakeInterp{}
	r := NewResolver(fi)
	for _, in := range []string{"cancel", "nevermind", "forget it", "nope"} {
		res, err := r.Resolve(context.Background(), ampmState(), in, nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome != OutcomeCancelled {
			t.Errorf("Resolve(%q) outcome = %v, want cancelled", in, res.Outcome)
		}
	}
	// Cancellation never consults the interpreter.
	if fi.calls != 0 {
		t.Errorf("interpreter called %d times for cancellations", fi.calls)
	}
}

func TestResolveDirectAnswers(t *testing.T) {
	r := NewResolver(&fakeInterp{})
	ctx := context.Background()

	res, err := r.Resolve(ctx, ampmState(), "pm", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeResolved || !res.Answer.PM {
		t.Errorf("pm answer = %+v", res)
	}

	// A full restated time also settles AM/PM.
	res, _ = r.Resolve(ctx, ampmState(), "4:30pm", nil)
	if res.Outcome != OutcomeResolved || !res.Answer.Clock.Known || res.Answer.Clock.Hour != 16 {
		t.Errorf("restated time = %+v", res)
	}

	timeState := &PendingState{
		Kind:      KindClarifyTime,
		Payload:   Payload{ReminderText: "take out trash"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	res, _ = r.Resolve(ctx, timeState, "6:30", nil)
	if res.Outcome != OutcomeResolved || res.Answer.Clock.Known {
		t.Errorf("ambiguous time answer = %+v, want resolved but unknown meridiem", res)
	}

	confirm := &PendingState{
		Kind:      KindConfirmDelete,
		Prompt:    "Should I cancel it?",
		Payload:   Payload{Target: &Candidate{Kind: CandidateReminder, ID: "x", Label: "it"}},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	res, _ = r.Resolve(ctx, confirm, "yes", nil)
	if res.Outcome != OutcomeResolved || !res.Answer.Yes {
		t.Errorf("yes answer = %+v", res)
	}

	sel := &PendingState{
		Kind: KindSelectAmongMatches,
		Payload: Payload{Candidates: []Candidate{
			{Kind: CandidateReminder, ID: "a", Label: "one"},
			{Kind: CandidateReminder, ID: "b", Label: "two"},
		}},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	res, _ = r.Resolve(ctx, sel, "2", nil)
	if res.Outcome != OutcomeResolved || res.Answer.Selection != 2 {
		t.Errorf("selection = %+v", res)
	}
	res, _ = r.Resolve(ctx, sel, "5", nil)
	if res.Outcome == OutcomeResolved {
		t.Error("out-of-range selection must not resolve")
	}
}

func TestResolveOverride(t *testing.T) {
	// Only a fully-specified new reminder request displaces the question.
	fi := &fakeInterp{res: &interpret.Result{
		Action:     interpret.ActionCreateReminder,
		Fields:     interpret.Fields{ReminderText: "take out trash", Date: "2026-08-24", Time: "18:00"},
		Confidence: 90,
	}}
	r := NewResolver(fi)

	res, err := r.Resolve(context.Background(), ampmState(), "actually remind me to take out trash tomorrow at 6pm", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeOverridden {
		t.Fatalf("outcome = %v, want overridden", res.Outcome)
	}
	if res.Intent.Action != interpret.ActionCreateReminder {
		t.Errorf("intent = %+v", res.Intent)
	}
}

func TestResolveOtherIntentsDoNotOverride(t *testing.T) {
	tests := []struct {
		name string
		res  *interpret.Result
	}{
		{"list item", &interpret.Result{
			Action:     interpret.ActionAddListItem,
			Fields:     interpret.Fields{ListName: "groceries", Item: "milk"},
			Confidence: 90,
		}},
		{"memory", &interpret.Result{
			Action:     interpret.ActionSaveMemory,
			Fields:     interpret.Fields{MemoryText: "gate code 4312"},
			Confidence: 95,
		}},
		{"reminder missing time", &interpret.Result{
			Action:     interpret.ActionCreateReminder,
			Fields:     interpret.Fields{ReminderText: "water plants"},
			Confidence: 95,
		}},
		{"reminder with ambiguous hour", &interpret.Result{
			Action:     interpret.ActionCreateReminder,
			Fields:     interpret.Fields{ReminderText: "water plants", AmbiguousHour: 6},
			Confidence: 95,
		}},
	}
	for _, tt := range tests {
		r := NewResolver(&fakeInterp{res: tt.res})
		res, err := r.Resolve(context.Background(), ampmState(), "oh and one more thing", nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome != OutcomeRePrompt {
			t.Errorf("%s: outcome = %v, want re-prompt", tt.name, res.Outcome)
		}
	}
}

func TestResolveRePromptIsStable(t *testing.T) {
	// Chat and unparseable verdicts never override and never lose the
	// question: the same re-prompt comes back every time.
	fi := &fakeInterp{res: &interpret.Result{Action: interpret.ActionChat, Confidence: 30}}
	r := NewResolver(fi)
	st := ampmState()

	var prompts []string
	for i := 0; i < 3; i++ {
		res, err := r.Resolve(context.Background(), st, "huh?", nil)
		if err != nil {
			t.Fatal(err)
		}
		if res.Outcome != OutcomeRePrompt {
			t.Fatalf("outcome = %v, want re-prompt", res.Outcome)
		}
		prompts = append(prompts, res.Prompt)
	}
	if prompts[0] != prompts[1] || prompts[1] != prompts[2] {
		t.Errorf("re-prompts drifted: %q", prompts)
	}
	if prompts[0] == "" {
		t.Error("re-prompt must carry the reconstructed question")
	}
	// The state itself is untouched by the resolver.
	if st.Payload.AmbiguousHour != 4 || st.Kind != KindClarifyAMPM {
		t.Errorf("state mutated: %+v", st)
	}
}

func TestRePromptCarriesCue(t *testing.T) {
	states := []*PendingState{
		ampmState(),
		{Kind: KindClarifyTime, Payload: Payload{ReminderText: "call mom"}},
		{Kind: KindClarifyDateTime, Payload: Payload{ReminderText: "call mom"}},
		{Kind: KindClarifySpecificTime, Payload: Payload{ReminderText: "call mom"}},
		{Kind: KindConfirmDelete, Prompt: "Should I cancel it?"},
		{Kind: KindSelectAmongMatches, Prompt: "Which one?", Payload: Payload{Candidates: []Candidate{{Label: "a"}, {Label: "b"}}}},
	}
	for _, st := range states {
		if RePrompt(st) == "" {
			t.Errorf("RePrompt(%s) is empty", st.Kind)
		}
	}
}

func TestStateRecordRoundTrip(t *testing.T) {
	st := &PendingState{
		Kind:   KindSelectAmongMatches,
		Prompt: "Which one?",
		Payload: Payload{
			Candidates: []Candidate{
				{Kind: CandidateReminder, ID: "r1", Label: "call mom"},
				{Kind: CandidateListItem, ItemID: 7, Label: "milk"},
			},
			FromUndo: true,
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second),
	}
	rec, err := st.Record("addr")
	if err != nil {
		t.Fatal(err)
	}
	back, err := StateFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if back.Kind != st.Kind || back.Prompt != st.Prompt || !back.Payload.FromUndo {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if len(back.Payload.Candidates) != 2 || back.Payload.Candidates[1].ItemID != 7 {
		t.Errorf("candidates = %+v", back.Payload.Candidates)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	st := &PendingState{ExpiresAt: now.Add(-time.Second)}
	if !st.Expired(now) {
		t.Error("past expiry not detected")
	}
	st.ExpiresAt = now.Add(time.Minute)
	if st.Expired(now) {
		t.Error("future expiry misdetected")
	}
}
