package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reminder statuses. Only pending reminders are claimable; only the claim
// holder may complete a claim; stale claims are force-returned to pending.
const (
	StatusPending   = "pending"
	StatusClaimed   = "claimed"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusPaused    = "paused"
)

// Reminder is a single scheduled occurrence.
type Reminder struct {
	ID          string
	Address     string
	Body        string
	DueAt       time.Time
	RecurringID string // empty for one-shot reminders
	Status      string
	ClaimedBy   string
	ClaimedAt   time.Time
	Attempts    int
	CreatedAt   time.Time
	SentAt      time.Time
}

// CreateReminder inserts a new pending reminder, assigning an ID if missing.
func (s *Store) CreateReminder(r *Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	_, err := s.db.Exec(`INSERT INTO reminders (id, address, body, due_at, recurring_id, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Address, r.Body, r.DueAt.UTC(), r.RecurringID, r.Status)
	if err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// GetReminder returns a reminder by id, or ErrNotFound.
func (s *Store) GetReminder(id string) (*Reminder, error) {
	row := s.db.QueryRow(`SELECT id, address, body, due_at, recurring_id, status,
		claimed_by, claimed_at, attempt_count, created_at, sent_at
		FROM reminders WHERE id = ?`, id)
	return scanReminder(row)
}

// DueReminders returns up to limit pending reminders due at or before now,
// oldest first.
func (s *Store) DueReminders(now time.Time, limit int) ([]*Reminder, error) {
	rows, err := s.db.Query(`SELECT id, address, body, due_at, recurring_id, status,
		claimed_by, claimed_at, attempt_count, created_at, sent_at
		FROM reminders WHERE status = ? AND due_at <= ?
		ORDER BY due_at LIMIT ?`, StatusPending, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// Claim attempts the atomic pending→claimed transition, tagging the row with
// the worker's identity. Returns false when another worker won the race.
func (s *Store) Claim(id, workerID string, now time.Time) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = ?`,
		StatusClaimed, workerID, now.UTC(), id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkSent completes a claim after a successful delivery. Only the claim
// holder may complete; anyone else gets ErrClaimLost.
func (s *Store) MarkSent(id, workerID string, now time.Time) error {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, sent_at = ?, claimed_by = '', claimed_at = NULL
		WHERE id = ? AND status = ? AND claimed_by = ?`,
		StatusSent, now.UTC(), id, StatusClaimed, workerID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return requireOneRow(res)
}

// MarkFailed records a terminal delivery failure for a held claim.
func (s *Store) MarkFailed(id, workerID string) error {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, claimed_by = '', claimed_at = NULL,
		attempt_count = attempt_count + 1
		WHERE id = ? AND status = ? AND claimed_by = ?`,
		StatusFailed, id, StatusClaimed, workerID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireOneRow(res)
}

// ReturnPending hands a held claim back for retry, bumping the attempt count.
func (s *Store) ReturnPending(id, workerID string) error {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, claimed_by = '', claimed_at = NULL,
		attempt_count = attempt_count + 1
		WHERE id = ? AND status = ? AND claimed_by = ?`,
		StatusPending, id, StatusClaimed, workerID)
	if err != nil {
		return fmt.Errorf("return pending: %w", err)
	}
	return requireOneRow(res)
}

// ReleaseStale force-returns claimed reminders whose claim is older than
// cutoff. This is the sole recovery path for a worker that claimed and then
// crashed or hung. Any worker may run the sweep.
func (s *Store) ReleaseStale(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, claimed_by = '', claimed_at = NULL
		WHERE status = ? AND claimed_at < ?`,
		StatusPending, StatusClaimed, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("release stale: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Snooze reschedules a reminder to dueAt and returns it to pending,
// releasing any claim. Sent reminders are revived; that is the normal snooze
// path right after a delivery.
func (s *Store) Snooze(id string, dueAt time.Time) error {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?, due_at = ?, claimed_by = '', claimed_at = NULL
		WHERE id = ? AND status IN (?, ?, ?)`,
		StatusPending, dueAt.UTC(), id, StatusPending, StatusClaimed, StatusSent)
	if err != nil {
		return fmt.Errorf("snooze: %w", err)
	}
	return requireOneRow(res)
}

// CancelReminder cancels a live reminder. Cancelling while claimed only
// prevents re-delivery after the claim resolves; racing an in-flight send is
// accepted. Sent history is never touched.
func (s *Store) CancelReminder(address, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?
		WHERE id = ? AND address = ? AND status IN (?, ?, ?)`,
		StatusCancelled, id, address, StatusPending, StatusClaimed, StatusPaused)
	if err != nil {
		return false, fmt.Errorf("cancel reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// PauseReminder pauses a pending reminder; paused reminders are never due.
func (s *Store) PauseReminder(address, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?
		WHERE id = ? AND address = ? AND status = ?`,
		StatusPaused, id, address, StatusPending)
	if err != nil {
		return false, fmt.Errorf("pause reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ResumeReminder returns a paused reminder to pending.
func (s *Store) ResumeReminder(address, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE reminders SET status = ?
		WHERE id = ? AND address = ? AND status = ?`,
		StatusPending, id, address, StatusPaused)
	if err != nil {
		return false, fmt.Errorf("resume reminder: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// UpcomingReminders lists the user's live (pending, claimed or paused)
// reminders, soonest first.
func (s *Store) UpcomingReminders(address string) ([]*Reminder, error) {
	rows, err := s.db.Query(`SELECT id, address, body, due_at, recurring_id, status,
		claimed_by, claimed_at, attempt_count, created_at, sent_at
		FROM reminders WHERE address = ? AND status IN (?, ?, ?)
		ORDER BY due_at`, address, StatusPending, StatusClaimed, StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("upcoming reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// FindRemindersByText returns the user's live reminders whose body contains
// the query, in stable due-date order. Used to resolve delete targets.
func (s *Store) FindRemindersByText(address, query string) ([]*Reminder, error) {
	rows, err := s.db.Query(`SELECT id, address, body, due_at, recurring_id, status,
		claimed_by, claimed_at, attempt_count, created_at, sent_at
		FROM reminders WHERE address = ? AND status IN (?, ?, ?)
		AND body LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY due_at`, address, StatusPending, StatusClaimed, StatusPaused, query)
	if err != nil {
		return nil, fmt.Errorf("find reminders: %w", err)
	}
	defer rows.Close()
	return collectReminders(rows)
}

// ---------------------------------------------------------------------------
// Recurring series
// ---------------------------------------------------------------------------

// RecurringReminder is a repeat rule that spawns concrete occurrences.
type RecurringReminder struct {
	ID       string
	Address  string
	Body     string
	RuleType string
	RuleDay  int
	Hour     int
	Minute   int
	Timezone string
	Active   bool
}

// CreateRecurring inserts a recurring series, assigning an ID if missing.
func (s *Store) CreateRecurring(r *RecurringReminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO recurring_reminders
		(id, address, body, rule_type, rule_day, hour, minute, timezone, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		r.ID, r.Address, r.Body, r.RuleType, r.RuleDay, r.Hour, r.Minute, r.Timezone)
	if err != nil {
		return fmt.Errorf("create recurring: %w", err)
	}
	r.Active = true
	return nil
}

// GetRecurring returns a recurring series by id, or ErrNotFound.
func (s *Store) GetRecurring(id string) (*RecurringReminder, error) {
	r := &RecurringReminder{}
	err := s.db.QueryRow(`SELECT id, address, body, rule_type, rule_day, hour, minute, timezone, active
		FROM recurring_reminders WHERE id = ?`, id).Scan(
		&r.ID, &r.Address, &r.Body, &r.RuleType, &r.RuleDay, &r.Hour, &r.Minute, &r.Timezone, &r.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring: %w", err)
	}
	return r, nil
}

// DeleteRecurring deactivates a series and cancels its future occurrences.
// Already-sent occurrences are history and stay untouched.
func (s *Store) DeleteRecurring(address, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE recurring_reminders SET active = 0
		WHERE id = ? AND address = ? AND active = 1`, id, address)
	if err != nil {
		return false, fmt.Errorf("delete recurring: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	_, err = s.db.Exec(`UPDATE reminders SET status = ?
		WHERE recurring_id = ? AND address = ? AND status IN (?, ?)`,
		StatusCancelled, id, address, StatusPending, StatusPaused)
	if err != nil {
		return true, fmt.Errorf("cancel future occurrences: %w", err)
	}
	return true, nil
}

// ActiveRecurring lists a user's active series.
func (s *Store) ActiveRecurring(address string) ([]*RecurringReminder, error) {
	rows, err := s.db.Query(`SELECT id, address, body, rule_type, rule_day, hour, minute, timezone, active
		FROM recurring_reminders WHERE address = ? AND active = 1 ORDER BY created_at`, address)
	if err != nil {
		return nil, fmt.Errorf("active recurring: %w", err)
	}
	defer rows.Close()
	var out []*RecurringReminder
	for rows.Next() {
		r := &RecurringReminder{}
		if err := rows.Scan(&r.ID, &r.Address, &r.Body, &r.RuleType, &r.RuleDay,
			&r.Hour, &r.Minute, &r.Timezone, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*Reminder, error) {
	r := &Reminder{}
	var claimedAt, sentAt sql.NullTime
	err := row.Scan(&r.ID, &r.Address, &r.Body, &r.DueAt, &r.RecurringID, &r.Status,
		&r.ClaimedBy, &claimedAt, &r.Attempts, &r.CreatedAt, &sentAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	if claimedAt.Valid {
		r.ClaimedAt = claimedAt.Time
	}
	if sentAt.Valid {
		r.SentAt = sentAt.Time
	}
	return r, nil
}

func collectReminders(rows *sql.Rows) ([]*Reminder, error) {
	var out []*Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrClaimLost
	}
	return nil
}
