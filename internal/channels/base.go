// Package channels connects chat platforms to the message bus.
package channels

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/flipagent/flipagent/internal/bus"
)

// Base is embedded by every channel. It applies the sender allowlist and
// publishes accepted messages on the bus.
type Base struct {
	kind  bus.ChannelType
	bus   bus.Bus
	allow []string
}

// NewBase returns a Base for kind. An empty allow list admits everyone.
func NewBase(kind bus.ChannelType, b bus.Bus, allow []string) Base {
	return Base{kind: kind, bus: b, allow: allow}
}

// IsAllowed matches senderID against the allowlist. Composite ids such as
// Telegram's "id|username" match when any part is listed.
func (b *Base) IsAllowed(senderID string) bool {
	if len(b.allow) == 0 {
		return true
	}
	return slices.ContainsFunc(strings.Split(senderID, "|"), func(part string) bool {
		return part != "" && slices.Contains(b.allow, part)
	}) || slices.Contains(b.allow, senderID)
}

// HandleMessage publishes an inbound message when the sender is allowed and
// reports whether it did.
func (b *Base) HandleMessage(senderID, chatID, content string, metadata map[string]any) bool {
	if !b.IsAllowed(senderID) {
		slog.Warn("Sender not on allowlist", "channel", b.kind, "sender", senderID)
		return false
	}
	msg := bus.NewInboundMessage(b.kind, senderID, chatID, content)
	msg.SetMetadata(metadata)
	b.bus.PublishInbound(msg)
	return true
}

// splitMessage cuts content into pieces of at most limit bytes, breaking at
// the last newline, else the last space, else mid-text.
func splitMessage(content string, limit int) []string {
	var chunks []string
	for len(content) > limit {
		cut := strings.LastIndex(content[:limit], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(content[:limit], " ")
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, content[:cut])
		content = strings.TrimLeft(content[cut:], " \t\n")
	}
	return append(chunks, content)
}
