package store

// Schema is the complete sqlite schema. Statements are idempotent so the
// schema can be re-applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	address TEXT PRIMARY KEY,
	channel TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT 'UTC',
	tier TEXT NOT NULL DEFAULT 'free',
	onboarded BOOLEAN NOT NULL DEFAULT 0,
	last_created_reminder_id TEXT NOT NULL DEFAULT '',
	last_delivered_reminder_id TEXT NOT NULL DEFAULT '',
	last_delivered_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pending_states (
	address TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '{}',
	prompt TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reminders (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	body TEXT NOT NULL,
	due_at DATETIME NOT NULL,
	recurring_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	claimed_by TEXT NOT NULL DEFAULT '',
	claimed_at DATETIME,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	sent_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, due_at);
CREATE INDEX IF NOT EXISTS idx_reminders_user ON reminders(address, status);
CREATE INDEX IF NOT EXISTS idx_reminders_claimed ON reminders(status, claimed_at);
CREATE INDEX IF NOT EXISTS idx_reminders_recurring ON reminders(recurring_id, status);

CREATE TABLE IF NOT EXISTS recurring_reminders (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	body TEXT NOT NULL,
	rule_type TEXT NOT NULL,
	rule_day INTEGER NOT NULL DEFAULT 0,
	hour INTEGER NOT NULL,
	minute INTEGER NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_recurring_user ON recurring_reminders(address, active);

CREATE TABLE IF NOT EXISTS lists (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(address, name)
);

CREATE TABLE IF NOT EXISTS list_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	list_id INTEGER NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_list_items_list ON list_items(list_id);

CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(address);
`
