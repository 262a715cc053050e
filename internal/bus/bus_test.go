package bus

import (
	"context"
	"testing"
	"time"
)

func TestInboundRoundTrip(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(&InboundMessage{Channel: "whatsapp", SenderID: "addr", Content: "hi"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.ConsumeInbound(ctx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if msg.Channel != "whatsapp" || msg.Content != "hi" {
		t.Errorf("got %+v", msg)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not stamped on publish")
	}
}

func TestConsumeInboundHonorsCancel(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDispatchOutboundRoutesByChannel(t *testing.T) {
	b := NewMessageBus()
	got := make(chan *OutboundMessage, 2)
	b.Subscribe("slack", func(m *OutboundMessage) { got <- m })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchOutbound(ctx)

	b.PublishOutbound(&OutboundMessage{Channel: "whatsapp", Recipient: "a", Content: "wrong door"})
	b.PublishOutbound(&OutboundMessage{Channel: "slack", Recipient: "C123", Content: "hello"})

	select {
	case m := <-got:
		if m.Channel != "slack" || m.Content != "hello" {
			t.Errorf("got %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never called")
	}
	select {
	case m := <-got:
		t.Fatalf("unexpected extra delivery %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}
