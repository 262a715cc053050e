// Package events publishes reminder lifecycle events to Kafka for external
// consumers (analytics, audit). Publishing is fire-and-forget: the bot never
// blocks a user turn or a delivery on the event stream.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MinderBot/MinderBot/internal/config"
)

// Event types emitted over the reminder lifecycle.
const (
	TypeCreated   = "reminder.created"
	TypeSent      = "reminder.sent"
	TypeFailed    = "reminder.failed"
	TypeCancelled = "reminder.cancelled"
	TypeSnoozed   = "reminder.snoozed"
	TypeRespawned = "reminder.respawned"
)

// Event is one lifecycle record. Address keys the partition so a user's
// events stay ordered.
type Event struct {
	Type        string    `json:"type"`
	ReminderID  string    `json:"reminder_id"`
	RecurringID string    `json:"recurring_id,omitempty"`
	Address     string    `json:"address"`
	DueAt       time.Time `json:"due_at,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewKafkaPublisher builds a publisher from configuration.
func NewKafkaPublisher(cfg config.EventsConfig, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

// Publish emits one event. Errors are logged, never propagated.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("encode event", "type", ev.Type, "error", err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Address),
		Value: value,
	})
	if err != nil {
		p.log.Error("publish event", "type", ev.Type, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops all events. Used when the event stream is disabled and
// in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }
