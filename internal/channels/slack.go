package channels

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config/channel"
)

const (
	slackMaxText  = 3900
	slackMetaKey  = "slack"
	slackDirectIM = "im"
)

// slackMessage is the subset of a message or app_mention event the channel acts on.
type slackMessage struct {
	kind     string
	user     string
	channel  string
	text     string
	subtype  string
	chanType string
	ts       string
	threadTS string
}

func slackMessageFrom(ev slackevents.EventsAPIInnerEvent) (slackMessage, bool) {
	switch data := ev.Data.(type) {
	case *slackevents.MessageEvent:
		return slackMessage{
			kind: ev.Type, user: data.User, channel: data.Channel, text: data.Text,
			subtype: data.SubType, chanType: data.ChannelType,
			ts: data.TimeStamp, threadTS: data.ThreadTimeStamp,
		}, true
	case *slackevents.AppMentionEvent:
		return slackMessage{
			kind: ev.Type, user: data.User, channel: data.Channel, text: data.Text,
			ts: data.TimeStamp, threadTS: data.ThreadTimeStamp,
		}, true
	}
	return slackMessage{}, false
}

// SlackChannel connects over Socket Mode. Direct messages follow the DM policy,
// channel messages follow the group policy.
type SlackChannel struct {
	Base
	cfg     *channel.SlackConfig
	api     *slackgo.Client
	socket  *socketmode.Client
	self    string
	mention *regexp.Regexp
}

func NewSlackChannel(cfg *channel.SlackConfig, b bus.Bus) *SlackChannel {
	return &SlackChannel{Base: NewBase(bus.ChannelSlack, b, nil), cfg: cfg}
}

func (s *SlackChannel) Name() string { return string(bus.ChannelSlack) }

func (s *SlackChannel) Start(ctx context.Context) error {
	if s.cfg.BotToken == "" || s.cfg.AppToken == "" {
		slog.Warn("Slack tokens missing, channel idle")
		<-ctx.Done()
		return ctx.Err()
	}

	s.api = slackgo.New(s.cfg.BotToken, slackgo.OptionAppLevelToken(s.cfg.AppToken))
	auth, err := s.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.setSelf(auth.UserID)
	slog.Info("Slack connected", "team", auth.Team, "bot_user", s.self)

	s.socket = socketmode.New(s.api)
	go func() {
		if err := s.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Slack socket stopped", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-s.socket.Events:
			if !ok {
				return nil
			}
			if evt.Type != socketmode.EventTypeEventsAPI || evt.Request == nil {
				continue
			}
			s.socket.Ack(*evt.Request)
			if api, ok := evt.Data.(slackevents.EventsAPIEvent); ok {
				if m, ok := slackMessageFrom(api.InnerEvent); ok {
					s.receive(ctx, m)
				}
			}
		}
	}
}

func (s *SlackChannel) receive(ctx context.Context, m slackMessage) {
	if m.subtype != "" || m.user == "" || m.channel == "" || m.user == s.self {
		return
	}
	// A mention arrives twice: once as app_mention, once as message.
	if m.kind == "message" && s.mentions(m.text) {
		return
	}
	if !s.admit(m) {
		return
	}

	threadTS := m.threadTS
	if threadTS == "" && s.cfg.ReplyInThread {
		threadTS = m.ts
	}
	if s.cfg.ReactEmoji != "" && m.ts != "" {
		ref := slackgo.ItemRef{Channel: m.channel, Timestamp: m.ts}
		if err := s.api.AddReactionContext(ctx, s.cfg.ReactEmoji, ref); err != nil {
			slog.Debug("Slack reaction failed", "err", err)
		}
	}

	s.HandleMessage(m.user, m.channel, s.stripMention(m.text), map[string]any{
		slackMetaKey: map[string]any{"thread_ts": threadTS, "channel_type": m.chanType},
	})
}

func (s *SlackChannel) admit(m slackMessage) bool {
	if m.chanType == slackDirectIM {
		if !s.cfg.DM.Enabled {
			return false
		}
		return s.cfg.DM.Policy != "allowlist" || slices.Contains(s.cfg.DM.AllowFrom, m.user)
	}
	switch s.cfg.GroupPolicy {
	case "open":
		return true
	case "mention":
		return m.kind == "app_mention" || s.mentions(m.text)
	case "allowlist":
		return slices.Contains(s.cfg.GroupAllowFrom, m.channel)
	}
	return false
}

func (s *SlackChannel) setSelf(id string) {
	s.self = id
	if id != "" {
		s.mention = regexp.MustCompile(`<@` + regexp.QuoteMeta(id) + `>\s*`)
	}
}

func (s *SlackChannel) mentions(text string) bool {
	return s.mention != nil && s.mention.MatchString(text)
}

func (s *SlackChannel) stripMention(text string) string {
	if s.mention != nil {
		text = s.mention.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// Send posts the reply, threaded when the inbound message was. Progress lines
// are only posted into threads so channels stay readable.
func (s *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if s.api == nil {
		return nil
	}
	meta, _ := msg.Metadata()[slackMetaKey].(map[string]any)
	threadTS, _ := meta["thread_ts"].(string)
	chanType, _ := meta["channel_type"].(string)
	threaded := threadTS != "" && chanType != slackDirectIM
	if msg.IsProgress() && !threaded && chanType != slackDirectIM {
		return nil
	}

	for _, chunk := range splitMessage(msg.Content(), slackMaxText) {
		opts := []slackgo.MsgOption{slackgo.MsgOptionText(chunk, false)}
		if threaded {
			opts = append(opts, slackgo.MsgOptionTS(threadTS))
		}
		if _, _, err := s.api.PostMessageContext(ctx, msg.ChatID(), opts...); err != nil {
			return fmt.Errorf("slack post: %w", err)
		}
	}
	return nil
}
