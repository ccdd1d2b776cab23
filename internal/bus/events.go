// Package bus carries messages between chat channels and the agent runtime.
// Channels push InboundMessage onto the bus; the runtime answers with
// OutboundMessage, which a single dispatch loop routes back to the channel
// that owns the conversation.
package bus

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBufSize is the capacity of the Inbound and Outbound queues.
const DefaultBufSize = 100

// InboundMessage is a user message arriving from a channel.
type InboundMessage struct {
	ID        string
	Channel   string
	SenderID  string
	ChatID    string
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// SessionKey identifies the conversation this message belongs to. Every
// channel+chat pair gets its own session history.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// NewInboundMessage stamps a fresh message with an ID and timestamp.
func NewInboundMessage(channel, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		ID:        uuid.NewString(),
		Channel:   channel,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// OutboundMessage is an agent reply addressed to a channel conversation.
type OutboundMessage struct {
	ID       string
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Metadata map[string]any
}

// NewOutboundMessage builds a reply to the given inbound message.
func NewOutboundMessage(in InboundMessage, content string) OutboundMessage {
	return OutboundMessage{
		ID:      uuid.NewString(),
		Channel: in.Channel,
		ChatID:  in.ChatID,
		Content: content,
		ReplyTo: in.ID,
	}
}

// MessageBus connects channels to the runtime with two buffered queues.
// Inbound is consumed by the runtime's process loop; Outbound is consumed
// by DispatchOutbound, which fans replies out to per-channel subscribers.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu       sync.RWMutex
	handlers map[string]func(OutboundMessage)
}

// NewMessageBus creates a bus with the given queue capacity. A size below 1
// falls back to DefaultBufSize.
func NewMessageBus(bufSize int) *MessageBus {
	if bufSize < 1 {
		bufSize = DefaultBufSize
	}
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		handlers: make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the delivery handler for a channel name.
// Subscribing the same name again replaces the previous handler.
func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = fn
}

// UnsubscribeOutbound removes the handler for a channel name.
func (b *MessageBus) UnsubscribeOutbound(channel string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, channel)
}

// DispatchOutbound routes outbound messages to their channel's subscriber
// until ctx is cancelled. Messages for channels with no subscriber are
// dropped with a log line. Run it in its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn := b.handlers[msg.Channel]
			b.mu.RUnlock()
			if fn == nil {
				log.Printf("[bus] no subscriber for channel %q, dropping message", msg.Channel)
				continue
			}
			fn(msg)
		}
	}
}
