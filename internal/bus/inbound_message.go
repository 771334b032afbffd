package bus

import (
	"strings"
	"time"
)

// InboundMessage is a message received from a chat channel.
type InboundMessage struct {
	channel   string         // "telegram", "slack", "webchat", "cli", "schedule"
	senderID  string         // user identifier within the channel
	chatID    string         // chat / channel / DM identifier
	content   string         // message text
	timestamp time.Time      // when the message was received
	metadata  map[string]any // channel-specific extra data (message_id, thread_ts, …)
	userID    string         // explicit credential owner, overrides the derived one
}

// NewInboundMessage creates an InboundMessage with its timestamp set to now.
func NewInboundMessage(channel ChannelType, senderID, chatID, content string) InboundMessage {
	return InboundMessage{
		channel:   string(channel),
		senderID:  senderID,
		chatID:    chatID,
		content:   content,
		timestamp: time.Now(),
	}
}

func (m InboundMessage) ChatID() string                 { return m.chatID }
func (m InboundMessage) SenderID() string               { return m.senderID }
func (m InboundMessage) Content() string                { return m.content }
func (m InboundMessage) Channel() string                { return m.channel }
func (m InboundMessage) Timestamp() time.Time           { return m.timestamp }
func (m InboundMessage) Metadata() map[string]any       { return m.metadata }
func (m *InboundMessage) SetMetadata(md map[string]any) { m.metadata = md }

// SetUserID pins the credential owner for turns that run on someone's
// behalf, such as scheduled scans.
func (m *InboundMessage) SetUserID(id string) { m.userID = id }

// SessionKey returns the key used to look up the conversation session.
func (m InboundMessage) SessionKey() string {
	return RoutingKey(ChannelType(m.channel), m.chatID)
}

// UserID is the stable owner of stored marketplace credentials, namespaced
// by channel ("telegram:42", "slack:U123"). Console turns belong to
// SenderIDCLI. Telegram senders arrive as "id|username"; only the numeric id
// is kept.
func (m InboundMessage) UserID() string {
	if m.userID != "" {
		return m.userID
	}
	id, _, _ := strings.Cut(m.senderID, "|")
	if id == "" || ChannelType(m.channel) == ChannelCLI {
		return SenderIDCLI
	}
	return m.channel + ":" + id
}

// Preview returns a short snippet of the message content for logging.
func (m InboundMessage) Preview() string {
	preview := m.content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	return preview
}
