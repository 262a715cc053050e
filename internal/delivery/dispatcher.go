// Package delivery turns a claimed reminder into an outbound message and
// settles the claim: sent, returned for retry, or failed for good.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MinderBot/MinderBot/internal/config"
	"github.com/MinderBot/MinderBot/internal/events"
	"github.com/MinderBot/MinderBot/internal/recurrence"
	"github.com/MinderBot/MinderBot/internal/store"
)

// Gateway sends a message to a recipient on a channel. Send is synchronous:
// a nil return means the channel accepted the message.
type Gateway interface {
	Send(ctx context.Context, channel, recipient, text string) error
}

var openers = []string{
	"Hey! Just a reminder:",
	"Friendly nudge:",
	"Don't forget:",
	"Reminder time:",
	"Quick reminder:",
}

const snoozeHint = "\n\n(Reply SNOOZE to snooze)"

// Dispatcher delivers claimed reminders. Its worker identity must match the
// one the claims were taken under.
type Dispatcher struct {
	store    *store.Store
	gateway  Gateway
	events   events.Publisher
	workerID string
	maxTries int
	log      *slog.Logger
	now      func() time.Time
	pick     func(n int) int
}

// New builds a dispatcher.
func New(st *store.Store, gw Gateway, pub events.Publisher, cfg config.SchedulerConfig, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		gateway:  gw,
		events:   pub,
		workerID: cfg.WorkerID,
		maxTries: cfg.MaxAttempts,
		log:      log,
		now:      time.Now,
		pick:     rand.IntN,
	}
}

// SetWorkerID adopts the claim identity of the manager feeding this
// dispatcher. Called before any Dispatch.
func (d *Dispatcher) SetWorkerID(id string) {
	d.workerID = id
}

// Dispatch delivers one claimed reminder and settles its claim. Losing the
// claim mid-flight (a stale sweep got there first) is skipped silently; the
// reminder will be re-delivered by whoever holds it next.
func (d *Dispatcher) Dispatch(ctx context.Context, rem *store.Reminder) {
	user, err := d.store.GetUser(rem.Address)
	if err != nil {
		// No user record means no deliverable destination; retrying won't
		// help.
		d.log.Error("reminder has no deliverable user", "reminder_id", rem.ID, "error", err)
		d.settleFailure(ctx, rem, true)
		return
	}

	text := openers[d.pick(len(openers))] + " " + rem.Body + snoozeHint
	if err := d.gateway.Send(ctx, user.Channel, user.Address, text); err != nil {
		d.log.Warn("delivery failed",
			"reminder_id", rem.ID, "attempt", rem.Attempts+1, "error", err)
		d.settleFailure(ctx, rem, rem.Attempts+1 >= d.maxTries)
		return
	}

	now := d.now()
	if err := d.store.MarkSent(rem.ID, d.workerID, now); err != nil {
		if errors.Is(err, store.ErrClaimLost) {
			d.log.Debug("claim lost after send", "reminder_id", rem.ID)
			return
		}
		d.log.Error("mark sent failed", "reminder_id", rem.ID, "error", err)
		return
	}

	if err := d.store.SetLastDelivered(rem.Address, rem.ID, now); err != nil {
		d.log.Error("record delivery for snooze failed", "reminder_id", rem.ID, "error", err)
	}
	d.events.Publish(ctx, events.Event{
		Type:        events.TypeSent,
		ReminderID:  rem.ID,
		RecurringID: rem.RecurringID,
		Address:     rem.Address,
		DueAt:       rem.DueAt.UTC(),
	})
	d.log.Info("reminder delivered", "reminder_id", rem.ID, "address", rem.Address)

	if rem.RecurringID != "" {
		d.regenerate(ctx, rem, now)
	}
}

// settleFailure returns the claim for retry or marks it failed when the
// attempt budget is spent.
func (d *Dispatcher) settleFailure(ctx context.Context, rem *store.Reminder, terminal bool) {
	var err error
	if terminal {
		err = d.store.MarkFailed(rem.ID, d.workerID)
	} else {
		err = d.store.ReturnPending(rem.ID, d.workerID)
	}
	if errors.Is(err, store.ErrClaimLost) {
		d.log.Debug("claim lost while settling failure", "reminder_id", rem.ID)
		return
	}
	if err != nil {
		d.log.Error("settle failure", "reminder_id", rem.ID, "error", err)
		return
	}
	if terminal {
		d.log.Error("reminder failed permanently", "reminder_id", rem.ID, "attempts", rem.Attempts+1)
		d.events.Publish(ctx, events.Event{
			Type:       events.TypeFailed,
			ReminderID: rem.ID,
			Address:    rem.Address,
		})
	}
}

// regenerate spawns the next occurrence of a recurring series. The sent
// occurrence stays in history untouched; the new one is a fresh pending row.
func (d *Dispatcher) regenerate(ctx context.Context, rem *store.Reminder, after time.Time) {
	series, err := d.store.GetRecurring(rem.RecurringID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		d.log.Error("load recurring series", "recurring_id", rem.RecurringID, "error", err)
		return
	}
	if !series.Active {
		return
	}

	loc, err := time.LoadLocation(series.Timezone)
	if err != nil {
		loc = time.UTC
	}
	rule := recurrence.Rule{
		Type:   recurrence.Type(series.RuleType),
		Day:    series.RuleDay,
		Hour:   series.Hour,
		Minute: series.Minute,
	}
	next, err := rule.Next(after, loc)
	if err != nil {
		d.log.Error("compute next occurrence", "recurring_id", series.ID, "error", err)
		return
	}

	nextRem := &store.Reminder{
		Address:     series.Address,
		Body:        series.Body,
		DueAt:       next,
		RecurringID: series.ID,
	}
	if err := d.store.CreateReminder(nextRem); err != nil {
		d.log.Error("create next occurrence", "recurring_id", series.ID, "error", err)
		return
	}
	d.events.Publish(ctx, events.Event{
		Type:        events.TypeRespawned,
		ReminderID:  nextRem.ID,
		RecurringID: series.ID,
		Address:     series.Address,
		DueAt:       next.UTC(),
	})
	d.log.Info("recurring reminder respawned",
		"recurring_id", series.ID, "next_due", next)
}
