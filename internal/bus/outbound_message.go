package bus

// MetaProgress marks an outbound message as an intermediate update rather
// than the turn's final reply.
const MetaProgress = "_progress"

// OutboundMessage is a reply routed back to a channel.
type OutboundMessage struct {
	channel  string
	chatID   string
	content  string
	metadata map[string]any
}

func NewOutboundMessage(channel, chatID, content string) OutboundMessage {
	return OutboundMessage{channel: channel, chatID: chatID, content: content}
}

// NewProgressMessage builds an intermediate update that carries the inbound
// message's channel hints (thread ids and the like).
func NewProgressMessage(channel, chatID, content string, inbound map[string]any) OutboundMessage {
	md := make(map[string]any, len(inbound)+1)
	for k, v := range inbound {
		md[k] = v
	}
	md[MetaProgress] = true
	return OutboundMessage{channel: channel, chatID: chatID, content: content, metadata: md}
}

func (m OutboundMessage) Channel() string                { return m.channel }
func (m OutboundMessage) ChatID() string                 { return m.chatID }
func (m OutboundMessage) Content() string                { return m.content }
func (m OutboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *OutboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

func (m OutboundMessage) IsProgress() bool {
	p, _ := m.metadata[MetaProgress].(bool)
	return p
}
