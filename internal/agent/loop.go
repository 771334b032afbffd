package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/session"
	"github.com/flipagent/flipagent/internal/shared/llmutils"
	"github.com/flipagent/flipagent/internal/tools"
)

const (
	replyEmpty = "I've completed processing but have no response to give."
	helpText   = "flipagent commands:\n/new - Start a new conversation\n/tools [text] - Show the tools loaded for a message\n/help - Show available commands"
)

// AgentLoop is the core processing engine.
//
// It reads InboundMessages from the bus, runs each message through the tool
// loop and publishes OutboundMessages. Messages are handled concurrently,
// but turns of the same session are serialised.
type AgentLoop struct {
	bus      bus.Bus
	settings schema.AgentSettings

	prompt   *PromptBuilder
	sessions *session.Manager
	registry *tools.Registry
	runner   *Runner

	sessionLocks sync.Map // session key -> *sync.Mutex
}

var _ schema.AgentLooper = (*AgentLoop)(nil)

// NewAgentLoop creates an AgentLoop.
func NewAgentLoop(
	bus bus.Bus,
	settings schema.AgentSettings,
	sessions *session.Manager,
	registry *tools.Registry,
	runner *Runner,
	prompt *PromptBuilder,
) *AgentLoop {
	if settings.MaxTools <= 0 {
		settings.MaxTools = tools.DefaultMaxTools
	}
	return &AgentLoop{
		bus:      bus,
		settings: settings,
		prompt:   prompt,
		sessions: sessions,
		registry: registry,
		runner:   runner,
	}
}

// Run reads from the inbound bus and processes each message in a goroutine.
// Blocks until ctx is cancelled.
func (loop *AgentLoop) Run(ctx context.Context) error {
	slog.Info("Agent loop started")

	for {
		select {
		case msg := <-loop.bus.InboundChan():
			go loop.handleInbound(ctx, msg)
		case <-ctx.Done():
			slog.Info("Agent loop stopping")
			return ctx.Err()
		}
	}
}

// ProcessDirect handles a message outside the bus (CLI single-shot, watchlist)
// as the console owner, without progress updates. Returns the final text response.
func (loop *AgentLoop) ProcessDirect(ctx context.Context, content, sessKey, channel, chatID string) string {
	return loop.ProcessAs(ctx, bus.SenderIDCLI, content, sessKey, channel, chatID)
}

// ProcessAs is ProcessDirect on behalf of userID, whose stored credentials
// the turn's tools use. An empty userID means the console owner.
func (loop *AgentLoop) ProcessAs(ctx context.Context, userID, content, sessKey, channel, chatID string) string {
	userID = llmutils.StringOrDefault(userID, bus.SenderIDCLI)
	msg := bus.NewInboundMessage(bus.ChannelType(channel), userID, chatID, content)
	msg.SetUserID(userID)
	reply, _ := loop.handle(ctx, msg, sessKey, nil)
	return reply
}

func (loop *AgentLoop) handleInbound(ctx context.Context, msg bus.InboundMessage) {
	reply, ok := loop.HandleMessage(ctx, msg, "")
	if !ok && bus.ChannelType(msg.Channel()) != bus.ChannelCLI {
		return
	}
	// The CLI waits for a reply even when there is nothing to say.
	out := bus.NewOutboundMessage(msg.Channel(), msg.ChatID(), reply)
	out.SetMetadata(msg.Metadata())
	loop.bus.PublishOutbound(out)
}

// HandleMessage runs one user message to completion and returns the reply.
// ok is false when there is nothing to send: empty input or a cancelled turn.
// sessionKey overrides the key derived from msg when non-empty.
func (loop *AgentLoop) HandleMessage(ctx context.Context, msg bus.InboundMessage, sessionKey string) (reply string, ok bool) {
	return loop.handle(ctx, msg, sessionKey, loop.progressFunc(msg))
}

func (loop *AgentLoop) handle(ctx context.Context, msg bus.InboundMessage, sessionKey string, onProgress func(string)) (string, bool) {
	content := strings.TrimSpace(msg.Content())
	if content == "" {
		return "", false
	}

	key := llmutils.StringOrDefault(sessionKey, msg.SessionKey())
	unlock := loop.lockSession(key)
	defer unlock()

	slog.Info(
		"Processing message",
		"sender", msg.SenderID(),
		"channel", msg.Channel(),
		"content", llmutils.Truncate(content, 80),
	)

	if reply, handled := loop.handleSlashCommand(content, key); handled {
		return reply, true
	}

	ses := loop.sessions.GetOrCreate(key)
	history := TrimHistory(ses.History(0), loop.settings.MemoryWindow)
	transcript := Normalize(append(history, schema.NewTextTurn(schema.RoleUser, content)))
	catalog := tools.Select(loop.registry, content, loop.settings.MaxTools)

	userID := msg.UserID()
	ctx = tools.WithTurnContext(ctx, tools.TurnContext{
		UserID:  userID,
		Channel: msg.Channel(),
		ChatID:  msg.ChatID(),
	})
	system := loop.prompt.Build(userID, msg.Channel(), msg.ChatID())

	outcome := loop.runner.Run(ctx, system, transcript, catalog, onProgress)
	if outcome.Reason == ReasonCancelled {
		slog.Info("Turn cancelled", "session", key)
		return "", false
	}

	final := llmutils.StringOrDefault(outcome.Text, replyEmpty)
	slog.Info("Response",
		"channel", msg.Channel(),
		"sender", msg.SenderID(),
		"reason", outcome.Reason,
		"iterations", outcome.Iterations,
		"tools", len(catalog),
		"length", len(final),
	)

	// A failed model call leaves history untouched so a context overflow is
	// not replayed on the next turn.
	if outcome.Reason == ReasonModelError {
		return final, true
	}

	ses.AddUser(content)
	ses.AddAssistant(final, outcome.ToolsUsed)
	if err := loop.sessions.Save(ses); err != nil {
		slog.Warn("Failed to save session", "key", key, "err", err)
	}
	return final, true
}

func (loop *AgentLoop) lockSession(key string) func() {
	v, _ := loop.sessionLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// handleSlashCommand handles a known slash command and reports whether it did.
func (loop *AgentLoop) handleSlashCommand(content, key string) (string, bool) {
	cmd, rest, _ := strings.Cut(content, " ")
	switch strings.ToLower(cmd) {
	case "/new":
		if err := loop.sessions.Clear(key); err != nil {
			slog.Warn("Failed to clear session", "key", key, "err", err)
		}
		loop.sessions.Invalidate(key)
		return "New session started.", true
	case "/help":
		return helpText, true
	case "/tools":
		return loop.describeSelection(strings.TrimSpace(rest)), true
	}
	return "", false
}

func (loop *AgentLoop) describeSelection(text string) string {
	selected := tools.Select(loop.registry, text, loop.settings.MaxTools)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d tools loaded", len(selected), loop.registry.Size())
	if text != "" {
		fmt.Fprintf(&sb, " for %q", llmutils.Truncate(text, 60))
	}
	sb.WriteString(":\n")
	for _, d := range selected {
		fmt.Fprintf(&sb, "- %s (%s/%s)\n", d.Name, d.Metadata.Platform, d.Metadata.Category)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// progressFunc returns a callback that pushes intermediate output to the
// outbound bus so clients can show what the agent is doing.
func (loop *AgentLoop) progressFunc(msg bus.InboundMessage) func(string) {
	return func(content string) {
		loop.bus.PublishOutbound(bus.NewProgressMessage(msg.Channel(), msg.ChatID(), content, msg.Metadata()))
	}
}
