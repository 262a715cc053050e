// Package store is the persistence layer for minderbot. It is the single
// source of truth and the only coordination point between workers: every
// state transition on a reminder is an atomic conditional update.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrClaimLost is returned when a conditional transition finds the
	// reminder no longer in the expected state. Callers skip silently.
	ErrClaimLost = errors.New("store: claim lost")
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// User is a person the bot talks to, addressed by their channel identity.
type User struct {
	Address         string
	Channel         string
	FirstName       string
	Timezone        string
	Tier            string
	Onboarded       bool
	LastCreatedID   string // undo slot
	LastDeliveredID string // snooze target
	LastDeliveredAt time.Time
}

// Location resolves the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	if loc, err := time.LoadLocation(u.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// GetOrCreateUser returns the user for the given address, creating a fresh
// record on first contact.
func (s *Store) GetOrCreateUser(channel, address string) (*User, error) {
	_, err := s.db.Exec(`INSERT INTO users (address, channel) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET channel = excluded.channel`,
		address, channel)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(address)
}

// GetUser returns the user record for address, or ErrNotFound.
func (s *Store) GetUser(address string) (*User, error) {
	u := &User{}
	var deliveredAt sql.NullTime
	err := s.db.QueryRow(`SELECT address, channel, first_name, timezone, tier, onboarded,
		last_created_reminder_id, last_delivered_reminder_id, last_delivered_at
		FROM users WHERE address = ?`, address).Scan(
		&u.Address, &u.Channel, &u.FirstName, &u.Timezone, &u.Tier, &u.Onboarded,
		&u.LastCreatedID, &u.LastDeliveredID, &deliveredAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if deliveredAt.Valid {
		u.LastDeliveredAt = deliveredAt.Time
	}
	return u, nil
}

// UpdateUserProfile stores name/timezone/tier/onboarding fields.
func (s *Store) UpdateUserProfile(address, firstName, timezone, tier string, onboarded bool) error {
	_, err := s.db.Exec(`UPDATE users SET first_name = ?, timezone = ?, tier = ?, onboarded = ?
		WHERE address = ?`, firstName, timezone, tier, onboarded, address)
	return err
}

// SetUndoRef records the most recently created reminder for "undo".
func (s *Store) SetUndoRef(address, reminderID string) error {
	_, err := s.db.Exec(`UPDATE users SET last_created_reminder_id = ? WHERE address = ?`,
		reminderID, address)
	return err
}

// ClearUndoRef clears the undo slot.
func (s *Store) ClearUndoRef(address string) error {
	return s.SetUndoRef(address, "")
}

// SetLastDelivered records the most recently delivered reminder for "snooze".
func (s *Store) SetLastDelivered(address, reminderID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_delivered_reminder_id = ?, last_delivered_at = ?
		WHERE address = ?`, reminderID, at.UTC(), address)
	return err
}

// ---------------------------------------------------------------------------
// Pending states
// ---------------------------------------------------------------------------

// PendingStateRecord is the persisted form of a user's single outstanding
// question. The payload is opaque JSON owned by the dialogue package.
type PendingStateRecord struct {
	Address   string
	Kind      string
	Payload   []byte
	Prompt    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// GetPendingState returns the user's pending state, or ErrNotFound.
func (s *Store) GetPendingState(address string) (*PendingStateRecord, error) {
	rec := &PendingStateRecord{}
	var payload string
	err := s.db.QueryRow(`SELECT address, kind, payload, prompt, created_at, expires_at
		FROM pending_states WHERE address = ?`, address).Scan(
		&rec.Address, &rec.Kind, &payload, &rec.Prompt, &rec.CreatedAt, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending state: %w", err)
	}
	rec.Payload = []byte(payload)
	return rec, nil
}

// SetPendingState replaces the user's pending state atomically. A user has at
// most one pending state; the upsert fully overwrites any prior payload.
func (s *Store) SetPendingState(rec *PendingStateRecord) error {
	_, err := s.db.Exec(`INSERT INTO pending_states (address, kind, payload, prompt, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			kind = excluded.kind,
			payload = excluded.payload,
			prompt = excluded.prompt,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		rec.Address, rec.Kind, string(rec.Payload), rec.Prompt,
		rec.CreatedAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("set pending state: %w", err)
	}
	return nil
}

// ClearPendingState removes the user's pending state. Clearing an absent
// state is not an error.
func (s *Store) ClearPendingState(address string) error {
	_, err := s.db.Exec(`DELETE FROM pending_states WHERE address = ?`, address)
	return err
}
