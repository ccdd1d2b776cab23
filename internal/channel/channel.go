// Package channel connects chat surfaces to the message bus. Each channel
// turns its native transport into InboundMessage values and delivers
// OutboundMessage replies back to the user.
package channel

import (
	"context"
	"strings"

	"github.com/spoonos-ai/spoonbot/internal/bus"
)

// Channel is a chat surface the agent can talk through.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

// BaseChannel carries the state every channel shares: its name, the bus it
// publishes to, and an optional sender allowlist.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
}

func NewBaseChannel(name string, b *bus.MessageBus, allowFrom []string) BaseChannel {
	ids := make([]string, 0, len(allowFrom))
	for _, id := range allowFrom {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return BaseChannel{name: name, bus: b, allowFrom: ids}
}

func (c BaseChannel) Name() string { return c.name }

// IsAllowed reports whether a sender may talk to the agent. An empty
// allowlist admits everyone.
func (c BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	for _, id := range c.allowFrom {
		if id == senderID {
			return true
		}
	}
	return false
}
