package channel

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/spoonos-ai/spoonbot/internal/bus"
	"github.com/spoonos-ai/spoonbot/internal/config"
)

// Manager owns the enabled channels and their outbound subscriptions.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
}

// NewManager builds the channels enabled in cfg and subscribes each one to
// its share of outbound traffic.
func NewManager(cfg config.ChannelsConfig, b *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	if cfg.CLI.Enabled {
		m.Register(NewCLIChannel(b))
	}

	if cfg.Telegram.Enabled {
		ch, err := NewTelegramChannel(cfg.Telegram, b)
		if err != nil {
			return nil, fmt.Errorf("init telegram channel: %w", err)
		}
		m.Register(ch)
	}

	return m, nil
}

// Register adds a channel and routes its outbound messages to it.
func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			log.Printf("[channel] send to %s failed: %v", ch.Name(), err)
		}
	})
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts every channel concurrently and returns the first failure.
func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Printf("[channel] starting %s", name)
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

// StopAll stops every channel. Stop errors are logged, not returned.
func (m *Manager) StopAll() error {
	for name, ch := range m.channels {
		log.Printf("[channel] stopping %s", name)
		if err := ch.Stop(); err != nil {
			log.Printf("[channel] error stopping %s: %v", name, err)
		}
	}
	return nil
}

// Names lists the registered channels in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
