// Package router is the dialogue core: it consumes inbound messages, runs
// each through the pending-state machine and the confirmation gate, executes
// the resulting actions against the store, and publishes replies.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MinderBot/MinderBot/internal/bus"
	"github.com/MinderBot/MinderBot/internal/config"
	"github.com/MinderBot/MinderBot/internal/dialogue"
	"github.com/MinderBot/MinderBot/internal/events"
	"github.com/MinderBot/MinderBot/internal/interpret"
	"github.com/MinderBot/MinderBot/internal/store"
)

const historyDepth = 10

// Router orchestrates one user turn at a time.
type Router struct {
	store    *store.Store
	bus      *bus.MessageBus
	interp   interpret.Interpreter
	resolver *dialogue.Resolver
	gate     *dialogue.Gate
	events   events.Publisher
	cfg      config.DialogueConfig
	log      *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	history map[string][]interpret.ContextMessage
}

// New wires up the dialogue core.
func New(st *store.Store, b *bus.MessageBus, interp interpret.Interpreter, pub events.Publisher, cfg config.DialogueConfig, log *slog.Logger) *Router {
	return &Router{
		store:    st,
		bus:      b,
		interp:   interp,
		resolver: dialogue.NewResolver(interp),
		gate:     dialogue.NewGate(cfg.ConfidenceThreshold, cfg.PendingStateTTL),
		events:   pub,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		history:  make(map[string][]interpret.ContextMessage),
	}
}

// Loop consumes inbound messages until the context is cancelled.
func (r *Router) Loop(ctx context.Context) error {
	for {
		msg, err := r.bus.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		if err := r.HandleTurn(ctx, msg); err != nil {
			r.log.Error("turn failed", "channel", msg.Channel, "sender", msg.SenderID, "error", err)
		}
	}
}

// HandleTurn processes one inbound message end to end and publishes the
// reply. Every turn produces exactly one reply.
func (r *Router) HandleTurn(ctx context.Context, msg *bus.InboundMessage) error {
	user, err := r.store.GetOrCreateUser(msg.Channel, msg.SenderID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	reply, err := r.handle(ctx, user, msg.Content)
	if err != nil {
		r.reply(user, "Sorry, something went wrong on my end. Mind trying that again?")
		return err
	}

	r.remember(user.Address, msg.Content, reply)
	r.reply(user, reply)
	return nil
}

// handle runs the fixed turn pipeline: snooze keyword, pending-state
// resolution, undo, then a fresh interpreted turn.
func (r *Router) handle(ctx context.Context, user *store.User, text string) (string, error) {
	// Snooze acts on the last delivered reminder and works regardless of any
	// outstanding question.
	if dur, ok := dialogue.ParseSnooze(text); ok {
		return r.handleSnooze(ctx, user, dur)
	}

	st, err := r.loadPending(user.Address)
	if err != nil {
		return "", err
	}
	if st != nil {
		return r.resolvePending(ctx, user, st, text)
	}

	if dialogue.IsUndo(text) {
		return r.handleUndo(ctx, user)
	}

	res, err := r.interp.Interpret(ctx, text, r.recent(user.Address))
	if err != nil {
		return "", fmt.Errorf("interpret: %w", err)
	}
	if !res.Actionable() {
		return chatReply(res), nil
	}
	return r.freshIntent(ctx, user, res)
}

// loadPending fetches the user's pending state, treating an expired one as
// absent.
func (r *Router) loadPending(address string) (*dialogue.PendingState, error) {
	rec, err := r.store.GetPendingState(address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st, err := dialogue.StateFromRecord(rec)
	if err != nil {
		// A payload we can no longer read is dropped, not a dead end.
		r.log.Warn("dropping unreadable pending state", "address", address, "error", err)
		return nil, r.store.ClearPendingState(address)
	}
	if st.Expired(r.now()) {
		if err := r.store.ClearPendingState(address); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return st, nil
}

// resolvePending applies the resolver's verdict on the outstanding question.
// The resolver itself never mutates; all state changes happen here.
func (r *Router) resolvePending(ctx context.Context, user *store.User, st *dialogue.PendingState, text string) (string, error) {
	res, err := r.resolver.Resolve(ctx, st, text, r.recent(user.Address))
	if err != nil {
		return "", err
	}

	switch res.Outcome {
	case dialogue.OutcomeCancelled:
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		if st.Payload.FromUndo {
			if err := r.store.ClearUndoRef(user.Address); err != nil {
				return "", err
			}
		}
		return "Okay, I've dropped that.", nil

	case dialogue.OutcomeRePrompt:
		// State stays byte-for-byte what it was; only the question goes out
		// again.
		return res.Prompt, nil

	case dialogue.OutcomeOverridden:
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		return r.freshIntent(ctx, user, res.Intent)

	case dialogue.OutcomeResolved:
		return r.completePending(ctx, user, st, res.Answer)
	}
	return "", fmt.Errorf("unknown resolver outcome %d", res.Outcome)
}

// completePending finishes the question the user just answered.
func (r *Router) completePending(ctx context.Context, user *store.User, st *dialogue.PendingState, ans dialogue.Answer) (string, error) {
	switch st.Kind {
	case dialogue.KindClarifyAMPM:
		hour, minute := st.Payload.AmbiguousHour, st.Payload.Minute
		if ans.Clock.Known {
			// The user restated a full time instead of answering AM/PM.
			hour, minute = ans.Clock.Hour, ans.Clock.Minute
		} else {
			hour = to24h(hour, ans.PM)
		}
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		return r.schedulePending(ctx, user, st.Payload, hour, minute)

	case dialogue.KindClarifyTime, dialogue.KindClarifyDateTime, dialogue.KindClarifySpecificTime:
		if !ans.Clock.Known {
			// The answer pinned the clock but not the meridiem; ask the
			// narrower question. Replacing the state is the turn's single
			// mutation.
			next := r.gate.AskAMPM(st.Payload, ans.Clock.Hour, ans.Clock.Minute)
			if err := r.setPending(user.Address, next); err != nil {
				return "", err
			}
			return next.Prompt, nil
		}
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		return r.schedulePending(ctx, user, st.Payload, ans.Clock.Hour, ans.Clock.Minute)

	case dialogue.KindConfirmLowConfidence:
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		if !ans.Yes {
			return "No problem, I won't do that. What would you like instead?", nil
		}
		return r.freshConfirmed(ctx, user, st.Payload.Intent)

	case dialogue.KindConfirmDelete:
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		if st.Payload.FromUndo {
			if err := r.store.ClearUndoRef(user.Address); err != nil {
				return "", err
			}
		}
		if !ans.Yes {
			return "Okay, I'll leave it alone.", nil
		}
		return r.performDelete(ctx, user, st.Payload.Target)

	case dialogue.KindSelectAmongMatches:
		if err := r.store.ClearPendingState(user.Address); err != nil {
			return "", err
		}
		if st.Payload.FromUndo {
			if err := r.store.ClearUndoRef(user.Address); err != nil {
				return "", err
			}
		}
		target := st.Payload.Candidates[ans.Selection-1]
		return r.performDelete(ctx, user, &target)
	}
	return "", fmt.Errorf("unknown pending kind %q", st.Kind)
}

// handleUndo starts the confirm flow for the most recently created reminder.
func (r *Router) handleUndo(ctx context.Context, user *store.User) (string, error) {
	if user.LastCreatedID == "" {
		return "There's nothing recent to undo.", nil
	}
	rem, err := r.store.GetReminder(user.LastCreatedID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !isLive(rem.Status)) {
		if err := r.store.ClearUndoRef(user.Address); err != nil {
			return "", err
		}
		return "There's nothing recent to undo.", nil
	}
	if err != nil {
		return "", err
	}
	cand := dialogue.Candidate{
		Kind:  dialogue.CandidateReminder,
		ID:    rem.ID,
		Label: reminderLabel(rem, user.Location()),
	}
	d := r.gate.Disambiguate("cancel", []dialogue.Candidate{cand}, true)
	return r.applyDecision(ctx, user, d)
}

// handleSnooze reschedules the last delivered reminder. dur == 0 means the
// user gave no amount.
func (r *Router) handleSnooze(ctx context.Context, user *store.User, dur time.Duration) (string, error) {
	now := r.now()
	if user.LastDeliveredID == "" || now.Sub(user.LastDeliveredAt) > r.cfg.SnoozeWindow {
		return "There's no recent reminder to snooze.", nil
	}
	if dur <= 0 {
		dur = r.cfg.SnoozeDefault
	}
	if dur > r.cfg.SnoozeMax {
		dur = r.cfg.SnoozeMax
	}
	newDue := now.Add(dur)
	err := r.store.Snooze(user.LastDeliveredID, newDue)
	if errors.Is(err, store.ErrClaimLost) {
		return "That reminder can't be snoozed anymore.", nil
	}
	if err != nil {
		return "", err
	}
	r.events.Publish(ctx, events.Event{
		Type:       events.TypeSnoozed,
		ReminderID: user.LastDeliveredID,
		Address:    user.Address,
		DueAt:      newDue.UTC(),
	})
	return fmt.Sprintf("Snoozed. I'll remind you again at %s.", clockIn(newDue, user.Location())), nil
}

func (r *Router) setPending(address string, st *dialogue.PendingState) error {
	rec, err := st.Record(address)
	if err != nil {
		return err
	}
	return r.store.SetPendingState(rec)
}

// reply publishes one outbound message back to the user's channel.
func (r *Router) reply(user *store.User, text string) {
	if text == "" {
		return
	}
	r.bus.PublishOutbound(&bus.OutboundMessage{
		Channel:   user.Channel,
		Recipient: user.Address,
		Content:   text,
	})
}

// remember keeps a short per-user transcript for interpreter context.
func (r *Router) remember(address, userText, botText string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[address]
	h = append(h, interpret.ContextMessage{Role: "user", Content: userText})
	if botText != "" {
		h = append(h, interpret.ContextMessage{Role: "assistant", Content: botText})
	}
	if len(h) > historyDepth {
		h = h[len(h)-historyDepth:]
	}
	r.history[address] = h
}

func (r *Router) recent(address string) []interpret.ContextMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[address]
	out := make([]interpret.ContextMessage, len(h))
	copy(out, h)
	return out
}

func isLive(status string) bool {
	switch status {
	case store.StatusPending, store.StatusClaimed, store.StatusPaused:
		return true
	}
	return false
}

func to24h(hour int, pm bool) int {
	if pm {
		if hour != 12 {
			return hour + 12
		}
		return 12
	}
	if hour == 12 {
		return 0
	}
	return hour
}

func chatReply(res *interpret.Result) string {
	if res == nil || res.Unparseable {
		return "I didn't quite catch that. I can set reminders, keep lists, and remember things for you."
	}
	return "Hi! I can set reminders, keep lists, and remember things for you. What do you need?"
}
