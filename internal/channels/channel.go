// Package channels holds the messaging transports. Each channel feeds
// inbound messages onto the bus and delivers outbound text; the registry
// routes a send to the channel the recipient lives on.
package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MinderBot/MinderBot/internal/bus"
)

// Channel is one messaging transport.
type Channel interface {
	// Name returns the channel name (e.g. "whatsapp").
	Name() string
	// Start connects the channel and begins feeding the bus.
	Start(ctx context.Context) error
	// Stop disconnects the channel.
	Stop() error
	// Send delivers text to a recipient on this channel.
	Send(ctx context.Context, recipient, text string) error
}

// BaseChannel provides the bus handle every channel shares.
type BaseChannel struct {
	Bus *bus.MessageBus
}

// Registry tracks the active channels and routes sends to them. It is the
// delivery gateway: a send to an unregistered channel is an error, not a
// silent drop.
type Registry struct {
	channels map[string]Channel
	log      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{channels: make(map[string]Channel), log: log}
}

// Register adds a channel. Channels are registered before StartAll; the
// registry is read-only afterwards, so no locking.
func (r *Registry) Register(c Channel) {
	r.channels[c.Name()] = c
}

// StartAll starts every registered channel and wires it to outbound bus
// traffic.
func (r *Registry) StartAll(ctx context.Context) error {
	for name, c := range r.channels {
		if err := c.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		r.log.Info("channel started", "channel", name)
	}
	return nil
}

// StopAll stops every channel, logging rather than aborting on errors.
func (r *Registry) StopAll() {
	for name, c := range r.channels {
		if err := c.Stop(); err != nil {
			r.log.Warn("channel stop failed", "channel", name, "error", err)
		}
	}
}

// Send routes one message to the recipient's channel.
func (r *Registry) Send(ctx context.Context, channel, recipient, text string) error {
	c, ok := r.channels[channel]
	if !ok {
		return fmt.Errorf("no such channel: %s", channel)
	}
	return c.Send(ctx, recipient, text)
}
