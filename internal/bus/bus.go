// Package bus carries messages between chat channels and the agent loop.
package bus

import "log/slog"

// Bus is the contract between chat channels and the agent core.
type Bus interface {
	PublishInbound(msg InboundMessage)
	PublishOutbound(msg OutboundMessage)
	// InboundChan is drained by the agent loop.
	InboundChan() <-chan InboundMessage
	// OutboundChan is drained by the channel manager.
	OutboundChan() <-chan OutboundMessage
}

// MessageBus is the in-process Bus: one buffered queue per direction.
// Publishing blocks while the destination queue is full.
type MessageBus struct {
	in  chan InboundMessage
	out chan OutboundMessage
}

func NewMessageBus(capacity int) *MessageBus {
	return &MessageBus{
		in:  make(chan InboundMessage, capacity),
		out: make(chan OutboundMessage, capacity),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage) {
	if len(b.in) == cap(b.in) {
		slog.Warn("Inbound queue full, waiting for the agent", "channel", msg.Channel(), "chat", msg.ChatID())
	}
	b.in <- msg
}

func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	if len(b.out) == cap(b.out) {
		slog.Warn("Outbound queue full, waiting for channels", "channel", msg.Channel(), "chat", msg.ChatID())
	}
	b.out <- msg
}

func (b *MessageBus) InboundChan() <-chan InboundMessage   { return b.in }
func (b *MessageBus) OutboundChan() <-chan OutboundMessage { return b.out }

// Pending reports how many messages wait in each queue.
func (b *MessageBus) Pending() (inbound, outbound int) { return len(b.in), len(b.out) }
