package bus

import (
	"context"
	"testing"
	"time"
)

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42"}
	if got := msg.SessionKey(); got != "telegram:42" {
		t.Errorf("SessionKey() = %q, want %q", got, "telegram:42")
	}
}

func TestNewInboundMessage(t *testing.T) {
	before := time.Now()
	msg := NewInboundMessage("cli", "local", "default", "hello")
	if msg.ID == "" {
		t.Error("ID should be set")
	}
	if msg.Channel != "cli" || msg.SenderID != "local" || msg.ChatID != "default" {
		t.Errorf("addressing fields = %q/%q/%q", msg.Channel, msg.SenderID, msg.ChatID)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Timestamp.Before(before) {
		t.Error("timestamp should be stamped at creation")
	}

	other := NewInboundMessage("cli", "local", "default", "hello")
	if other.ID == msg.ID {
		t.Error("IDs should be unique per message")
	}
}

func TestNewOutboundMessage(t *testing.T) {
	in := NewInboundMessage("telegram", "u1", "chat9", "ping")
	out := NewOutboundMessage(in, "pong")
	if out.ID == "" {
		t.Error("ID should be set")
	}
	if out.Channel != "telegram" || out.ChatID != "chat9" {
		t.Errorf("addressing = %q/%q, want telegram/chat9", out.Channel, out.ChatID)
	}
	if out.ReplyTo != in.ID {
		t.Errorf("replyTo = %q, want %q", out.ReplyTo, in.ID)
	}
	if out.Content != "pong" {
		t.Errorf("content = %q", out.Content)
	}
}

func TestNewMessageBusBufSize(t *testing.T) {
	b := NewMessageBus(0)
	if cap(b.Inbound) != DefaultBufSize {
		t.Errorf("inbound cap = %d, want %d", cap(b.Inbound), DefaultBufSize)
	}
	b = NewMessageBus(5)
	if cap(b.Outbound) != 5 {
		t.Errorf("outbound cap = %d, want 5", cap(b.Outbound))
	}
}

func TestDispatchOutboundRoutesBySubscriber(t *testing.T) {
	b := NewMessageBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan OutboundMessage, 2)
	b.SubscribeOutbound("cli", func(msg OutboundMessage) {
		got <- msg
	})
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "cli", ChatID: "default", Content: "one"}
	// No subscriber for this one; it must be dropped without blocking the loop.
	b.Outbound <- OutboundMessage{Channel: "telegram", ChatID: "42", Content: "lost"}
	b.Outbound <- OutboundMessage{Channel: "cli", ChatID: "default", Content: "two"}

	for _, want := range []string{"one", "two"} {
		select {
		case msg := <-got:
			if msg.Content != want {
				t.Errorf("content = %q, want %q", msg.Content, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestUnsubscribeOutbound(t *testing.T) {
	b := NewMessageBus(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan struct{}, 1)
	b.SubscribeOutbound("cli", func(OutboundMessage) { delivered <- struct{}{} })
	b.UnsubscribeOutbound("cli")
	go b.DispatchOutbound(ctx)

	b.Outbound <- OutboundMessage{Channel: "cli", Content: "dropped"}

	select {
	case <-delivered:
		t.Error("handler should not run after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}
