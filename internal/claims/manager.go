// Package claims runs the scheduling core: the periodic due check that
// claims reminders for delivery, and the stale sweep that recovers claims
// abandoned by crashed or hung workers. Multiple workers can run the same
// loops against one database; the claim transition arbitrates.
package claims

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MinderBot/MinderBot/internal/config"
	"github.com/MinderBot/MinderBot/internal/store"
)

// Dispatcher delivers one claimed reminder. The dispatcher owns the claim's
// completion: sent, returned for retry, or failed. Completions are only
// honored for the identity the claim was taken under, so the manager hands
// its worker ID over at construction.
type Dispatcher interface {
	SetWorkerID(id string)
	Dispatch(ctx context.Context, rem *store.Reminder)
}

// Manager drives the due-check and stale-sweep loops.
type Manager struct {
	store    *store.Store
	disp     Dispatcher
	cfg      config.SchedulerConfig
	workerID string
	log      *slog.Logger
	sem      *Semaphore
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewManager builds a scheduling manager. An empty WorkerID gets a random
// identity; it only has to be unique among live workers.
func NewManager(st *store.Store, disp Dispatcher, cfg config.SchedulerConfig, log *slog.Logger) *Manager {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}
	disp.SetWorkerID(workerID)
	return &Manager{
		store:    st,
		disp:     disp,
		cfg:      cfg,
		workerID: workerID,
		log:      log,
		sem:      NewSemaphore(cfg.MaxConcurrent),
		now:      time.Now,
	}
}

// WorkerID returns this manager's claim identity.
func (m *Manager) WorkerID() string { return m.workerID }

// Run ticks the due check and the stale sweep until the context is
// cancelled, then waits for in-flight dispatches.
func (m *Manager) Run(ctx context.Context) error {
	m.log.Info("claim manager starting",
		"worker_id", m.workerID,
		"due_tick", m.cfg.DueTick,
		"stale_tick", m.cfg.StaleTick,
		"lease", m.cfg.Lease)

	// Sweep once at startup so reminders claimed by a previous incarnation
	// of this worker come back without waiting a full stale tick.
	m.staleSweep()

	dueTicker := time.NewTicker(m.cfg.DueTick)
	defer dueTicker.Stop()
	staleTicker := time.NewTicker(m.cfg.StaleTick)
	defer staleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			return ctx.Err()
		case <-dueTicker.C:
			m.dueCheck(ctx)
		case <-staleTicker.C:
			m.staleSweep()
		}
	}
}

// dueCheck claims a batch of due reminders and hands each to the dispatcher.
// Losing a claim race is normal with multiple workers and skipped silently.
func (m *Manager) dueCheck(ctx context.Context) {
	now := m.now()
	due, err := m.store.DueReminders(now, m.cfg.BatchSize)
	if err != nil {
		m.log.Error("due check failed", "error", err)
		return
	}
	for _, rem := range due {
		claimed, err := m.store.Claim(rem.ID, m.workerID, now)
		if err != nil {
			m.log.Error("claim failed", "reminder_id", rem.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}
		m.wg.Add(1)
		go m.runDispatch(ctx, rem, now)
	}
}

// runDispatch waits for a concurrency slot, then dispatches — unless the
// task sat queued past its validity window. A discarded task stays claimed;
// the stale sweep returns it to pending once the lease expires, so it is
// retried rather than delivered very late.
func (m *Manager) runDispatch(ctx context.Context, rem *store.Reminder, claimedAt time.Time) {
	defer m.wg.Done()
	m.sem.Acquire()
	defer m.sem.Release()

	if ctx.Err() != nil {
		return
	}
	if age := m.now().Sub(claimedAt); age > m.cfg.DispatchValidity {
		m.log.Warn("discarding expired dispatch",
			"reminder_id", rem.ID, "queued_for", age, "validity", m.cfg.DispatchValidity)
		return
	}
	m.disp.Dispatch(ctx, rem)
}

// staleSweep force-returns claims older than the lease. This is the sole
// recovery path for claims whose worker died mid-dispatch.
func (m *Manager) staleSweep() {
	cutoff := m.now().Add(-m.cfg.Lease)
	n, err := m.store.ReleaseStale(cutoff)
	if err != nil {
		m.log.Error("stale sweep failed", "error", err)
		return
	}
	if n > 0 {
		m.log.Info("released stale claims", "count", n, "cutoff", cutoff)
	}
}
