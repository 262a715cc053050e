// Package config provides configuration types and loading for minderbot.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Dialogue, Scheduler, Interpreter, Channels, Events.
type Config struct {
	Paths       PathsConfig       `json:"paths"`
	Dialogue    DialogueConfig    `json:"dialogue"`
	Scheduler   SchedulerConfig   `json:"scheduler"`
	Interpreter InterpreterConfig `json:"interpreter"`
	Channels    ChannelsConfig    `json:"channels"`
	Events      EventsConfig      `json:"events"`
}

// ---------------------------------------------------------------------------
// Paths – filesystem locations
// ---------------------------------------------------------------------------

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// DBPath returns the path of the sqlite database inside DataDir.
func (p PathsConfig) DBPath() string {
	return filepath.Join(p.DataDir, "minderbot.db")
}

// ---------------------------------------------------------------------------
// Dialogue – pending-state and confirmation policy
// ---------------------------------------------------------------------------

// DialogueConfig contains the dialogue policy knobs. Every threshold and
// duration here is tunable; the defaults mirror what the assistant shipped with.
type DialogueConfig struct {
	// ConfidenceThreshold is the interpreter confidence (0-100) below which
	// an action is confirmed with the user before executing.
	ConfidenceThreshold int `json:"confidenceThreshold" envconfig:"CONFIDENCE_THRESHOLD"`
	// PendingStateTTL is the soft timeout after which an unanswered question
	// is treated as abandoned and any new message starts a fresh turn.
	PendingStateTTL time.Duration `json:"pendingStateTTL" envconfig:"PENDING_STATE_TTL"`
	// SnoozeDefault is the snooze duration when the user gives none.
	SnoozeDefault time.Duration `json:"snoozeDefault" envconfig:"SNOOZE_DEFAULT"`
	// SnoozeMax caps user-supplied snooze durations.
	SnoozeMax time.Duration `json:"snoozeMax" envconfig:"SNOOZE_MAX"`
	// SnoozeWindow is how long after a delivery the reminder stays snoozable.
	SnoozeWindow time.Duration `json:"snoozeWindow" envconfig:"SNOOZE_WINDOW"`
}

// ---------------------------------------------------------------------------
// Scheduler – claim-based delivery
// ---------------------------------------------------------------------------

// SchedulerConfig contains settings for the claim manager and dispatcher.
type SchedulerConfig struct {
	// DueTick is the interval between due-reminder checks.
	DueTick time.Duration `json:"dueTick" envconfig:"DUE_TICK"`
	// StaleTick is the interval between stale-claim sweeps.
	StaleTick time.Duration `json:"staleTick" envconfig:"STALE_TICK"`
	// Lease is how long a claim is honored before any worker may reclaim it.
	// Must be set well above the expected dispatch latency.
	Lease time.Duration `json:"lease" envconfig:"LEASE"`
	// DispatchValidity is the window in which a queued dispatch must start;
	// older dispatches are discarded rather than executed late.
	DispatchValidity time.Duration `json:"dispatchValidity" envconfig:"DISPATCH_VALIDITY"`
	// BatchSize is the maximum number of reminders claimed per tick.
	BatchSize int `json:"batchSize" envconfig:"BATCH_SIZE"`
	// MaxConcurrent bounds in-flight dispatches per worker.
	MaxConcurrent int `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	// MaxAttempts is the delivery attempt budget before a reminder is
	// marked failed terminally.
	MaxAttempts int `json:"maxAttempts" envconfig:"MAX_ATTEMPTS"`
	// WorkerID identifies this worker in claims. Defaults to a random ID.
	WorkerID string `json:"workerId" envconfig:"WORKER_ID"`
}

// ---------------------------------------------------------------------------
// Interpreter – natural-language collaborator
// ---------------------------------------------------------------------------

// InterpreterConfig contains settings for the NL interpreter client.
type InterpreterConfig struct {
	APIKey  string        `json:"apiKey" envconfig:"INTERPRETER_API_KEY"`
	APIBase string        `json:"apiBase" envconfig:"INTERPRETER_API_BASE"`
	Model   string        `json:"model" envconfig:"INTERPRETER_MODEL"`
	Timeout time.Duration `json:"timeout" envconfig:"INTERPRETER_TIMEOUT"`
}

// ---------------------------------------------------------------------------
// Channels – messaging integrations
// ---------------------------------------------------------------------------

// ChannelsConfig contains all channel configurations.
type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Slack    SlackConfig    `json:"slack"`
}

// WhatsAppConfig configures the native WhatsApp channel.
type WhatsAppConfig struct {
	Enabled          bool     `json:"enabled" envconfig:"WHATSAPP_ENABLED"`
	AllowFrom        []string `json:"allowFrom"`
	DropUnauthorized bool     `json:"dropUnauthorized" envconfig:"WHATSAPP_DROP_UNAUTHORIZED"`
}

// SlackConfig configures the Slack channel (Socket Mode).
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	AppToken string `json:"appToken" envconfig:"SLACK_APP_TOKEN"`
}

// ---------------------------------------------------------------------------
// Events – lifecycle event stream
// ---------------------------------------------------------------------------

// EventsConfig configures the Kafka lifecycle event publisher.
type EventsConfig struct {
	Enabled bool   `json:"enabled" envconfig:"EVENTS_ENABLED"`
	Brokers string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string `json:"topic" envconfig:"EVENTS_TOPIC"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			DataDir: filepath.Join(home, ".minderbot"),
		},
		Dialogue: DialogueConfig{
			ConfidenceThreshold: 70,
			PendingStateTTL:     30 * time.Minute,
			SnoozeDefault:       15 * time.Minute,
			SnoozeMax:           24 * time.Hour,
			SnoozeWindow:        30 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			DueTick:          30 * time.Second,
			StaleTick:        5 * time.Minute,
			Lease:            5 * time.Minute,
			DispatchValidity: 25 * time.Second,
			BatchSize:        10,
			MaxConcurrent:    5,
			MaxAttempts:      3,
		},
		Interpreter: InterpreterConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Enabled: false,
			Brokers: "localhost:9092",
			Topic:   "minderbot.reminders",
		},
	}
}
