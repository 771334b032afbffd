package channels

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config/channel"
)

const (
	telegramMaxMessage = 4000
	telegramTypingTTL  = 2 * time.Minute
	telegramTypingTick = 4 * time.Second
)

// TelegramChannel long-polls the Bot API. While a turn runs the chat shows
// a typing indicator, cleared by the final reply.
type TelegramChannel struct {
	Base
	cfg *channel.TelegramConfig
	bot *tgbotapi.BotAPI

	typing sync.Map // int64 chat id -> context.CancelFunc
}

func NewTelegramChannel(cfg *channel.TelegramConfig, b bus.Bus) *TelegramChannel {
	return &TelegramChannel{Base: NewBase(bus.ChannelTelegram, b, cfg.AllowFrom), cfg: cfg}
}

func (t *TelegramChannel) Name() string { return string(bus.ChannelTelegram) }

func (t *TelegramChannel) Start(ctx context.Context) error {
	bot, err := t.connect()
	if err != nil {
		return err
	}
	t.bot = bot
	slog.Info("Telegram connected", "bot", bot.Self.UserName)

	poll := tgbotapi.NewUpdate(0)
	poll.Timeout = 30
	updates := bot.GetUpdatesChan(poll)
	defer bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil && update.Message.From != nil {
				go t.receive(ctx, update.Message)
			}
		}
	}
}

func (t *TelegramChannel) connect() (*tgbotapi.BotAPI, error) {
	if t.cfg.Token == "" {
		return nil, fmt.Errorf("telegram: bot token not configured")
	}
	client := &http.Client{}
	if t.cfg.Proxy != "" {
		proxy, err := url.Parse(t.cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("telegram proxy %q: %w", t.cfg.Proxy, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(t.cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return bot, nil
}

func (t *TelegramChannel) receive(ctx context.Context, msg *tgbotapi.Message) {
	content := telegramContent(msg)
	if content == "" {
		return
	}
	sender := strconv.FormatInt(msg.From.ID, 10)
	if msg.From.UserName != "" {
		sender += "|" + msg.From.UserName
	}
	accepted := t.HandleMessage(sender, strconv.FormatInt(msg.Chat.ID, 10), content, map[string]any{
		"message_id": msg.MessageID,
		"username":   msg.From.UserName,
		"is_group":   !msg.Chat.IsPrivate(),
	})
	if accepted {
		t.showTyping(ctx, msg.Chat.ID)
	}
}

// telegramContent is the text handed to the agent. /start maps to /help.
func telegramContent(msg *tgbotapi.Message) string {
	if msg.IsCommand() && msg.Command() == "start" {
		return "/help"
	}
	if msg.Caption != "" {
		return strings.TrimSpace(msg.Caption)
	}
	return strings.TrimSpace(msg.Text)
}

// showTyping repeats the typing action until the reply lands or the TTL passes.
func (t *TelegramChannel) showTyping(ctx context.Context, chatID int64) {
	ctx, cancel := context.WithTimeout(ctx, telegramTypingTTL)
	defer cancel()
	if prev, loaded := t.typing.Swap(chatID, cancel); loaded {
		prev.(context.CancelFunc)()
	}

	tick := time.NewTicker(telegramTypingTick)
	defer tick.Stop()
	for {
		if _, err := t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			slog.Debug("Telegram typing action failed", "chat", chatID, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (t *TelegramChannel) stopTyping(chatID int64) {
	if cancel, ok := t.typing.LoadAndDelete(chatID); ok {
		cancel.(context.CancelFunc)()
	}
}

// Send renders Markdown as Telegram HTML, retrying a chunk as plain text
// when the markup is rejected.
func (t *TelegramChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram: bot not running")
	}
	chatID, err := strconv.ParseInt(msg.ChatID(), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", msg.ChatID(), err)
	}
	if !msg.IsProgress() {
		t.stopTyping(chatID)
	}
	if msg.Content() == "" {
		return nil
	}

	replyTo := 0
	if t.cfg.ReplyToMessage && !msg.IsProgress() {
		switch v := msg.Metadata()["message_id"].(type) {
		case int:
			replyTo = v
		case float64:
			replyTo = int(v)
		}
	}

	for _, chunk := range splitMessage(msg.Content(), telegramMaxMessage) {
		rich := tgbotapi.NewMessage(chatID, markdownToTelegramHTML(chunk))
		rich.ParseMode = tgbotapi.ModeHTML
		rich.ReplyToMessageID = replyTo
		if _, err := t.bot.Send(rich); err == nil {
			continue
		}
		plain := tgbotapi.NewMessage(chatID, chunk)
		plain.ReplyToMessageID = replyTo
		if _, err := t.bot.Send(plain); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

var (
	tgEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

	tgFence  = regexp.MustCompile("(?s)```\\w*\\n?(.*?)```")
	tgInline = regexp.MustCompile("`([^`]+)`")
	tgSlot   = regexp.MustCompile(`\x00(\d+)\x00`)

	// Applied in order to escaped text outside code spans.
	tgRules = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`), "$1"},
		{regexp.MustCompile(`(?m)^&gt;\s*(.*)$`), "$1"},
		{regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`), `<a href="$2">$1</a>`},
		{regexp.MustCompile(`\*\*(.+?)\*\*`), "<b>$1</b>"},
		{regexp.MustCompile(`__(.+?)__`), "<b>$1</b>"},
		{regexp.MustCompile(`(^|[^a-zA-Z0-9])_([^_]+)_([^a-zA-Z0-9]|$)`), "$1<i>$2</i>$3"},
		{regexp.MustCompile(`~~(.+?)~~`), "<s>$1</s>"},
		{regexp.MustCompile(`(?m)^[-*]\s+`), "• "},
	}
)

// markdownToTelegramHTML converts the Markdown subset models produce into
// the HTML subset the Bot API accepts. Code spans are set aside first so
// their contents are escaped but never formatted.
func markdownToTelegramHTML(text string) string {
	var slots []string
	stash := func(html string) string {
		slots = append(slots, html)
		return "\x00" + strconv.Itoa(len(slots)-1) + "\x00"
	}
	text = tgFence.ReplaceAllStringFunc(text, func(m string) string {
		return stash("<pre><code>" + tgEscaper.Replace(tgFence.FindStringSubmatch(m)[1]) + "</code></pre>")
	})
	text = tgInline.ReplaceAllStringFunc(text, func(m string) string {
		return stash("<code>" + tgEscaper.Replace(tgInline.FindStringSubmatch(m)[1]) + "</code>")
	})

	text = tgEscaper.Replace(text)
	for _, r := range tgRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}

	return tgSlot.ReplaceAllStringFunc(text, func(m string) string {
		i, _ := strconv.Atoi(tgSlot.FindStringSubmatch(m)[1])
		return slots[i]
	})
}
