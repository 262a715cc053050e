package claims

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MinderBot/MinderBot/internal/config"
	"github.com/MinderBot/MinderBot/internal/store"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	got      []string
	workerID string
}

func (d *recordingDispatcher) SetWorkerID(id string) {
	d.workerID = id
}

func (d *recordingDispatcher) Dispatch(_ context.Context, rem *store.Reminder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, rem.ID)
}

func (d *recordingDispatcher) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.got))
	copy(out, d.got)
	sort.Strings(out)
	return out
}

func testManager(t *testing.T) (*Manager, *store.Store, *recordingDispatcher) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	disp := &recordingDispatcher{}
	cfg := config.SchedulerConfig{
		DueTick:          30 * time.Second,
		StaleTick:        5 * time.Minute,
		Lease:            5 * time.Minute,
		DispatchValidity: 25 * time.Second,
		BatchSize:        10,
		MaxConcurrent:    4,
		MaxAttempts:      3,
		WorkerID:         "w-test",
	}
	m := NewManager(st, disp, cfg, slog.New(slog.DiscardHandler))
	return m, st, disp
}

func seed(t *testing.T, st *store.Store, body string, due time.Time) *store.Reminder {
	t.Helper()
	rem := &store.Reminder{Address: "addr", Body: body, DueAt: due}
	if err := st.CreateReminder(rem); err != nil {
		t.Fatal(err)
	}
	return rem
}

func TestWorkerIdentitySharedWithDispatcher(t *testing.T) {
	m, _, disp := testManager(t)
	if m.WorkerID() != "w-test" {
		t.Errorf("worker id = %q, want configured one", m.WorkerID())
	}
	if disp.workerID != m.WorkerID() {
		t.Errorf("dispatcher id = %q, manager id = %q; claims would never settle",
			disp.workerID, m.WorkerID())
	}

	// With no configured ID both sides still end up with the same generated
	// one.
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	anonDisp := &recordingDispatcher{}
	anon := NewManager(st, anonDisp, config.SchedulerConfig{MaxConcurrent: 1}, slog.New(slog.DiscardHandler))
	if !strings.HasPrefix(anon.WorkerID(), "worker-") || len(anon.WorkerID()) <= len("worker-") {
		t.Errorf("generated worker id = %q", anon.WorkerID())
	}
	if anonDisp.workerID != anon.WorkerID() {
		t.Errorf("dispatcher id = %q, manager id = %q", anonDisp.workerID, anon.WorkerID())
	}
}

func TestDueCheckClaimsAndDispatches(t *testing.T) {
	m, st, disp := testManager(t)
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	a := seed(t, st, "call mom", base.Add(-time.Minute))
	b := seed(t, st, "water plants", base.Add(-time.Second))
	future := seed(t, st, "not yet", base.Add(time.Hour))

	m.dueCheck(context.Background())
	m.wg.Wait()

	want := []string{a.ID, b.ID}
	sort.Strings(want)
	got := disp.ids()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("dispatched %v, want %v", got, want)
	}

	// Dispatched reminders carry this worker's claim until the dispatcher
	// settles them; the future one is untouched.
	for _, id := range want {
		rem, err := st.GetReminder(id)
		if err != nil {
			t.Fatal(err)
		}
		if rem.Status != store.StatusClaimed || rem.ClaimedBy != m.WorkerID() {
			t.Errorf("reminder %s: status=%s claimed_by=%q", id, rem.Status, rem.ClaimedBy)
		}
	}
	rem, err := st.GetReminder(future.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rem.Status != store.StatusPending {
		t.Errorf("future reminder status = %s, want pending", rem.Status)
	}
}

func TestDueCheckSkipsAlreadyClaimed(t *testing.T) {
	m, st, disp := testManager(t)
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	rem := seed(t, st, "call mom", base.Add(-time.Minute))
	claimed, err := st.Claim(rem.ID, "other-worker", base)
	if err != nil || !claimed {
		t.Fatalf("pre-claim: claimed=%v err=%v", claimed, err)
	}

	m.dueCheck(context.Background())
	m.wg.Wait()

	if got := disp.ids(); len(got) != 0 {
		t.Errorf("dispatched %v, want none", got)
	}
	cur, err := st.GetReminder(rem.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ClaimedBy != "other-worker" {
		t.Errorf("claim holder = %q, want other-worker", cur.ClaimedBy)
	}
}

func TestExpiredDispatchIsDiscarded(t *testing.T) {
	m, st, disp := testManager(t)
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	rem := seed(t, st, "call mom", base.Add(-time.Minute))
	claimed, err := st.Claim(rem.ID, m.WorkerID(), base)
	if err != nil || !claimed {
		t.Fatalf("claim: claimed=%v err=%v", claimed, err)
	}

	// The dispatch sat queued past the validity window.
	m.now = func() time.Time { return base.Add(m.cfg.DispatchValidity + time.Second) }
	m.wg.Add(1)
	m.runDispatch(context.Background(), rem, base)

	if got := disp.ids(); len(got) != 0 {
		t.Fatalf("dispatched %v, want none", got)
	}
	// The claim is left in place for the stale sweep, not completed here.
	cur, err := st.GetReminder(rem.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != store.StatusClaimed || cur.ClaimedBy != m.WorkerID() {
		t.Errorf("status=%s claimed_by=%q, want claimed by this worker", cur.Status, cur.ClaimedBy)
	}
}

func TestFreshDispatchWithinValidityRuns(t *testing.T) {
	m, st, disp := testManager(t)
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	rem := seed(t, st, "call mom", base.Add(-time.Minute))
	if _, err := st.Claim(rem.ID, m.WorkerID(), base); err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return base.Add(m.cfg.DispatchValidity) }
	m.wg.Add(1)
	m.runDispatch(context.Background(), rem, base)

	if got := disp.ids(); len(got) != 1 || got[0] != rem.ID {
		t.Fatalf("dispatched %v, want [%s]", got, rem.ID)
	}
}

func TestStaleSweepReturnsAbandonedClaims(t *testing.T) {
	m, st, disp := testManager(t)
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)

	stale := seed(t, st, "abandoned", base.Add(-time.Hour))
	if _, err := st.Claim(stale.ID, "dead-worker", base.Add(-m.cfg.Lease-time.Minute)); err != nil {
		t.Fatal(err)
	}
	fresh := seed(t, st, "in flight", base.Add(-time.Minute))
	if _, err := st.Claim(fresh.ID, "live-worker", base.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return base }
	m.staleSweep()

	cur, err := st.GetReminder(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != store.StatusPending || cur.ClaimedBy != "" {
		t.Errorf("stale claim: status=%s claimed_by=%q, want pending unclaimed", cur.Status, cur.ClaimedBy)
	}
	cur, err = st.GetReminder(fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cur.Status != store.StatusClaimed || cur.ClaimedBy != "live-worker" {
		t.Errorf("fresh claim swept: status=%s claimed_by=%q", cur.Status, cur.ClaimedBy)
	}

	// A recovered reminder is claimable again on the next due check.
	m.dueCheck(context.Background())
	m.wg.Wait()
	if got := disp.ids(); len(got) != 1 || got[0] != stale.ID {
		t.Errorf("dispatched %v, want recovered [%s]", got, stale.ID)
	}
}
