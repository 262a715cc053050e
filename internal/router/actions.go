package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MinderBot/MinderBot/internal/dialogue"
	"github.com/MinderBot/MinderBot/internal/events"
	"github.com/MinderBot/MinderBot/internal/interpret"
	"github.com/MinderBot/MinderBot/internal/recurrence"
	"github.com/MinderBot/MinderBot/internal/store"
)

// freshIntent handles a newly interpreted actionable request: destructive
// actions go through target disambiguation, everything else through the
// confidence gate.
func (r *Router) freshIntent(ctx context.Context, user *store.User, res *interpret.Result) (string, error) {
	if isDestructive(res.Action) {
		return r.destructive(ctx, user, res)
	}
	return r.applyDecision(ctx, user, r.gate.Check(res))
}

// freshConfirmed executes an intent the user already confirmed; the
// confidence gate is not consulted again.
func (r *Router) freshConfirmed(ctx context.Context, user *store.User, res *interpret.Result) (string, error) {
	if res == nil {
		return "", errors.New("confirmed intent missing from payload")
	}
	if isDestructive(res.Action) {
		return r.destructive(ctx, user, res)
	}
	return r.executeAction(ctx, user, res)
}

func isDestructive(a interpret.Action) bool {
	switch a {
	case interpret.ActionDeleteReminder, interpret.ActionDeleteListItem, interpret.ActionDeleteMemory:
		return true
	}
	return false
}

// destructive resolves the target candidates for a delete and lets the gate
// decide between not-found, confirm, and select.
func (r *Router) destructive(ctx context.Context, user *store.User, res *interpret.Result) (string, error) {
	var (
		cands []dialogue.Candidate
		verb  string
		err   error
	)
	switch res.Action {
	case interpret.ActionDeleteReminder:
		verb = "cancel"
		cands, err = r.reminderCandidates(user, res.Fields.Query)
	case interpret.ActionDeleteListItem:
		verb = "remove"
		cands, err = r.listItemCandidates(user, res.Fields.ListName, res.Fields.Query)
	case interpret.ActionDeleteMemory:
		verb = "forget"
		cands, err = r.memoryCandidates(user, res.Fields.Query)
	default:
		return "", fmt.Errorf("not a destructive action: %s", res.Action)
	}
	if err != nil {
		return "", err
	}
	return r.applyDecision(ctx, user, r.gate.Disambiguate(verb, cands, false))
}

// applyDecision carries out a gate decision: run it, ask it, or say it.
func (r *Router) applyDecision(ctx context.Context, user *store.User, d *dialogue.Decision) (string, error) {
	switch d.Kind {
	case dialogue.DecisionExecute:
		return r.executeAction(ctx, user, d.Intent)
	case dialogue.DecisionAsk:
		if err := r.setPending(user.Address, d.State); err != nil {
			return "", err
		}
		return d.State.Prompt, nil
	case dialogue.DecisionReply:
		return d.Reply, nil
	}
	return "", fmt.Errorf("unknown decision kind %d", d.Kind)
}

// executeAction runs a gated, complete, non-destructive action.
func (r *Router) executeAction(ctx context.Context, user *store.User, res *interpret.Result) (string, error) {
	f := res.Fields
	switch res.Action {
	case interpret.ActionCreateReminder:
		hour, minute, err := splitClock(f.Time)
		if err != nil {
			return "", err
		}
		if f.Recurrence != "" {
			return r.scheduleRecurring(ctx, user, f.ReminderText, f.Recurrence, f.RecurrenceDay, hour, minute)
		}
		return r.scheduleOneShot(ctx, user, f.ReminderText, f.Date, hour, minute)

	case interpret.ActionListReminders:
		return r.listReminders(user)

	case interpret.ActionCreateList:
		created, err := r.store.CreateList(user.Address, f.ListName)
		if err != nil {
			return "", err
		}
		if !created {
			return fmt.Sprintf("You already have a list called %q.", f.ListName), nil
		}
		return fmt.Sprintf("Created a list called %q.", f.ListName), nil

	case interpret.ActionAddListItem:
		list, err := r.store.GetListByName(user.Address, f.ListName)
		if errors.Is(err, store.ErrNotFound) {
			if _, err := r.store.CreateList(user.Address, f.ListName); err != nil {
				return "", err
			}
			list, err = r.store.GetListByName(user.Address, f.ListName)
			if err != nil {
				return "", err
			}
		} else if err != nil {
			return "", err
		}
		if err := r.store.AddListItem(list.ID, f.Item); err != nil {
			return "", err
		}
		return fmt.Sprintf("Added %q to your %s list.", f.Item, list.Name), nil

	case interpret.ActionShowList:
		return r.showList(user, f.ListName)

	case interpret.ActionSaveMemory:
		if _, err := r.store.SaveMemory(user.Address, f.MemoryText); err != nil {
			return "", err
		}
		return "Got it, I'll remember that.", nil

	case interpret.ActionSearchMemory:
		mems, err := r.store.SearchMemories(user.Address, f.Query)
		if err != nil {
			return "", err
		}
		if len(mems) == 0 {
			return fmt.Sprintf("I don't have anything about %q.", f.Query), nil
		}
		var b strings.Builder
		b.WriteString("Here's what I have:\n")
		for _, m := range mems {
			b.WriteString("- " + m.Body + "\n")
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
	return "", fmt.Errorf("unhandled action %q", res.Action)
}

// schedulePending creates whatever reminder a clarified question described;
// the payload remembers whether the original request was recurring.
func (r *Router) schedulePending(ctx context.Context, user *store.User, p dialogue.Payload, hour, minute int) (string, error) {
	if p.Recurrence != "" {
		return r.scheduleRecurring(ctx, user, p.ReminderText, p.Recurrence, p.RecurrenceDay, hour, minute)
	}
	return r.scheduleOneShot(ctx, user, p.ReminderText, p.Date, hour, minute)
}

// scheduleOneShot creates a single reminder at the given local clock time.
// An empty date means today, rolling to tomorrow when the time has passed.
func (r *Router) scheduleOneShot(ctx context.Context, user *store.User, text, date string, hour, minute int) (string, error) {
	loc := user.Location()
	now := r.now().In(loc)

	var due time.Time
	if date == "" {
		due = time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
		if !due.After(now) {
			due = due.AddDate(0, 0, 1)
		}
	} else {
		day, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return "", fmt.Errorf("bad reminder date %q: %w", date, err)
		}
		due = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
		if !due.After(now) {
			return fmt.Sprintf("%s has already passed. When should I remind you instead?", friendlyWhen(due, now)), nil
		}
	}

	rem := &store.Reminder{Address: user.Address, Body: text, DueAt: due}
	if err := r.store.CreateReminder(rem); err != nil {
		return "", err
	}
	if err := r.store.SetUndoRef(user.Address, rem.ID); err != nil {
		return "", err
	}
	r.events.Publish(ctx, events.Event{
		Type:       events.TypeCreated,
		ReminderID: rem.ID,
		Address:    user.Address,
		DueAt:      due.UTC(),
	})
	return fmt.Sprintf("I'll remind you %s to %s.", friendlyWhen(due, now), text), nil
}

// scheduleRecurring creates a repeat series plus its first occurrence.
func (r *Router) scheduleRecurring(ctx context.Context, user *store.User, text, recur string, day, hour, minute int) (string, error) {
	rule := recurrence.Rule{Type: recurrence.Type(recur), Day: day, Hour: hour, Minute: minute}
	if !rule.Type.Valid() {
		return "", fmt.Errorf("unknown recurrence %q", recur)
	}

	loc := user.Location()
	now := r.now()
	first, err := rule.Next(now, loc)
	if err != nil {
		return "", err
	}

	series := &store.RecurringReminder{
		Address:  user.Address,
		Body:     text,
		RuleType: string(rule.Type),
		RuleDay:  rule.Day,
		Hour:     rule.Hour,
		Minute:   rule.Minute,
		Timezone: user.Timezone,
	}
	if err := r.store.CreateRecurring(series); err != nil {
		return "", err
	}
	rem := &store.Reminder{
		Address:     user.Address,
		Body:        text,
		DueAt:       first,
		RecurringID: series.ID,
	}
	if err := r.store.CreateReminder(rem); err != nil {
		return "", err
	}
	if err := r.store.SetUndoRef(user.Address, rem.ID); err != nil {
		return "", err
	}
	r.events.Publish(ctx, events.Event{
		Type:        events.TypeCreated,
		ReminderID:  rem.ID,
		RecurringID: series.ID,
		Address:     user.Address,
		DueAt:       first.UTC(),
	})
	return fmt.Sprintf("I'll remind you %s to %s. First one %s.",
		rule.Describe(), text, friendlyWhen(first, now.In(loc))), nil
}

// performDelete carries out a confirmed delete on a single resolved target.
func (r *Router) performDelete(ctx context.Context, user *store.User, c *dialogue.Candidate) (string, error) {
	if c == nil {
		return "", errors.New("delete target missing from payload")
	}
	switch c.Kind {
	case dialogue.CandidateReminder:
		ok, err := r.store.CancelReminder(user.Address, c.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "That reminder is already gone.", nil
		}
		if c.ID == user.LastCreatedID {
			if err := r.store.ClearUndoRef(user.Address); err != nil {
				return "", err
			}
		}
		r.events.Publish(ctx, events.Event{
			Type:       events.TypeCancelled,
			ReminderID: c.ID,
			Address:    user.Address,
		})
		return fmt.Sprintf("Done, I've cancelled %s.", c.Label), nil

	case dialogue.CandidateRecurring:
		ok, err := r.store.DeleteRecurring(user.Address, c.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "That recurring reminder is already gone.", nil
		}
		r.events.Publish(ctx, events.Event{
			Type:        events.TypeCancelled,
			RecurringID: c.ID,
			Address:     user.Address,
		})
		return fmt.Sprintf("Done, I've stopped %s. Anything already sent stays in your history.", c.Label), nil

	case dialogue.CandidateListItem:
		ok, err := r.store.DeleteListItem(c.ItemID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "That item is already gone.", nil
		}
		return fmt.Sprintf("Removed %s.", c.Label), nil

	case dialogue.CandidateMemory:
		ok, err := r.store.DeleteMemory(user.Address, c.ID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "I'd already forgotten that.", nil
		}
		return "Forgotten.", nil
	}
	return "", fmt.Errorf("unknown candidate kind %q", c.Kind)
}

// reminderCandidates matches one-shot reminders and recurring series against
// the query, in stable order: one-shots by due date, then series.
func (r *Router) reminderCandidates(user *store.User, query string) ([]dialogue.Candidate, error) {
	loc := user.Location()
	rems, err := r.store.FindRemindersByText(user.Address, query)
	if err != nil {
		return nil, err
	}
	var cands []dialogue.Candidate
	for _, rem := range rems {
		if rem.RecurringID != "" {
			// Occurrences of a series are deleted through the series.
			continue
		}
		cands = append(cands, dialogue.Candidate{
			Kind:  dialogue.CandidateReminder,
			ID:    rem.ID,
			Label: reminderLabel(rem, loc),
		})
	}
	series, err := r.store.ActiveRecurring(user.Address)
	if err != nil {
		return nil, err
	}
	for _, s := range series {
		if query != "" && !strings.Contains(strings.ToLower(s.Body), strings.ToLower(query)) {
			continue
		}
		rule := recurrence.Rule{Type: recurrence.Type(s.RuleType), Day: s.RuleDay, Hour: s.Hour, Minute: s.Minute}
		cands = append(cands, dialogue.Candidate{
			Kind:  dialogue.CandidateRecurring,
			ID:    s.ID,
			Label: fmt.Sprintf("the recurring reminder to %s (%s)", s.Body, rule.Describe()),
		})
	}
	return cands, nil
}

func (r *Router) listItemCandidates(user *store.User, listName, query string) ([]dialogue.Candidate, error) {
	list, err := r.store.GetListByName(user.Address, listName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := r.store.ListItems(list.ID)
	if err != nil {
		return nil, err
	}
	var cands []dialogue.Candidate
	for _, it := range items {
		if query != "" && !strings.Contains(strings.ToLower(it.Body), strings.ToLower(query)) {
			continue
		}
		cands = append(cands, dialogue.Candidate{
			Kind:   dialogue.CandidateListItem,
			ItemID: it.ID,
			Label:  fmt.Sprintf("%q from your %s list", it.Body, list.Name),
		})
	}
	return cands, nil
}

func (r *Router) memoryCandidates(user *store.User, query string) ([]dialogue.Candidate, error) {
	mems, err := r.store.SearchMemories(user.Address, query)
	if err != nil {
		return nil, err
	}
	var cands []dialogue.Candidate
	for _, m := range mems {
		cands = append(cands, dialogue.Candidate{
			Kind:  dialogue.CandidateMemory,
			ID:    m.ID,
			Label: fmt.Sprintf("the note %q", m.Body),
		})
	}
	return cands, nil
}

func (r *Router) listReminders(user *store.User) (string, error) {
	loc := user.Location()
	now := r.now().In(loc)
	rems, err := r.store.UpcomingReminders(user.Address)
	if err != nil {
		return "", err
	}
	series, err := r.store.ActiveRecurring(user.Address)
	if err != nil {
		return "", err
	}
	if len(rems) == 0 && len(series) == 0 {
		return "You have no reminders coming up.", nil
	}

	var b strings.Builder
	b.WriteString("Here's what's coming up:\n")
	for _, rem := range rems {
		fmt.Fprintf(&b, "- %s %s", rem.Body, friendlyWhen(rem.DueAt.In(loc), now))
		if rem.Status == store.StatusPaused {
			b.WriteString(" (paused)")
		}
		b.WriteString("\n")
	}
	for _, s := range series {
		rule := recurrence.Rule{Type: recurrence.Type(s.RuleType), Day: s.RuleDay, Hour: s.Hour, Minute: s.Minute}
		fmt.Fprintf(&b, "- %s %s\n", s.Body, rule.Describe())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (r *Router) showList(user *store.User, name string) (string, error) {
	list, err := r.store.GetListByName(user.Address, name)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("You don't have a list called %q yet.", name), nil
	}
	if err != nil {
		return "", err
	}
	items, err := r.store.ListItems(list.ID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("Your %s list is empty.", list.Name), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", list.Name)
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it.Body)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func splitClock(hhmm string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("bad clock time %q: %w", hhmm, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad clock time %q", hhmm)
	}
	return hour, minute, nil
}
