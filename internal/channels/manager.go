package channels

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/schema"
)

// Manager runs the configured channels and delivers agent replies to them.
type Manager struct {
	bus      bus.Bus
	channels map[string]schema.Channel
}

// NewManager builds every channel enabled in cfg. The terminal channel is
// added only when withCLI is set.
func NewManager(cfg *config.Config, b bus.Bus, withCLI bool) *Manager {
	m := &Manager{bus: b, channels: map[string]schema.Channel{}}
	if withCLI {
		m.Register(NewCLIChannel(b))
	}
	if c := &cfg.Channels.Telegram; c.Enabled {
		m.Register(NewTelegramChannel(c, b))
	}
	if c := &cfg.Channels.Slack; c.Enabled {
		m.Register(NewSlackChannel(c, b))
	}
	if c := &cfg.Channels.WebChat; c.Enabled {
		m.Register(NewWebChatChannel(c, b))
	}
	return m
}

// Register adds ch under its name, replacing an earlier registration.
func (m *Manager) Register(ch schema.Channel) {
	m.channels[ch.Name()] = ch
	slog.Debug("Channel registered", "channel", ch.Name())
}

func (m *Manager) Get(name string) (schema.Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// EnabledChannels lists registered channel names in sorted order.
func (m *Manager) EnabledChannels() []string {
	return slices.Sorted(maps.Keys(m.channels))
}

// StartAll runs every channel and the outbound dispatcher until ctx ends.
// A channel that fails is logged and left stopped; the others keep running.
func (m *Manager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.dispatchOutbound(ctx)
	}()

	for _, name := range m.EnabledChannels() {
		ch := m.channels[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			slog.Info("Channel starting", "channel", name)
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Channel stopped", "channel", name, "err", err)
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.bus.OutboundChan():
			ch, ok := m.channels[msg.Channel()]
			if !ok {
				slog.Debug("Reply for unregistered channel dropped", "channel", msg.Channel(), "chat", msg.ChatID())
				continue
			}
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("Reply delivery failed", "channel", msg.Channel(), "chat", msg.ChatID(), "err", err)
			}
		}
	}
}
