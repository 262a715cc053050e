// Package bus provides the async message bus between channels and the
// dialogue core.
package bus

import (
	"context"
	"sync"
	"time"
)

// InboundMessage represents a message from a channel to the dialogue core.
type InboundMessage struct {
	Channel   string    `json:"channel"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMessage represents a reply or reminder going out to a channel.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

// MessageBus decouples channels from the dialogue core.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound sends a message from a channel to the dialogue core.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound sends a message from the dialogue core to channels.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// Subscribe registers a callback for outbound messages to a specific channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound runs the outbound message dispatcher.
// This should be run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
