package channels

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/shared/cmdutils"
)

var cliQuitWords = []string{"exit", "quit", "/exit", "/quit", ":q"}

// CLIChannel is the terminal REPL used by `gateway -i`. Each line becomes
// an inbound message and the prompt returns once the final reply prints.
type CLIChannel struct {
	Base
	in      io.Reader
	chatID  string
	replies chan bus.OutboundMessage
}

func NewCLIChannel(b bus.Bus) *CLIChannel {
	return &CLIChannel{
		Base:    NewBase(bus.ChannelCLI, b, nil),
		in:      os.Stdin,
		chatID:  bus.ChatIDDirect,
		replies: make(chan bus.OutboundMessage, 16),
	}
}

// RunTerminal serves one console conversation in session cli:<chatID>
// until the user quits or ctx ends. The agent loop must be consuming b.
func RunTerminal(ctx context.Context, b bus.Bus, chatID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	term := NewCLIChannel(b)
	if chatID != "" {
		term.chatID = chatID
	}
	m := &Manager{bus: b, channels: map[string]schema.Channel{term.Name(): term}}
	go m.dispatchOutbound(ctx)

	err := term.Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *CLIChannel) Name() string { return string(bus.ChannelCLI) }

func (c *CLIChannel) Start(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println("flipagent console. Type 'exit' or press Ctrl+C to quit.")
	for {
		fmt.Print("\nYou: ")
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				return nil
			}
			line = strings.TrimSpace(l)
		}
		switch {
		case line == "":
			continue
		case slices.Contains(cliQuitWords, strings.ToLower(line)):
			return nil
		}
		c.HandleMessage(bus.SenderIDCLI, c.chatID, line, nil)
		c.awaitReply(ctx)
	}
}

func (c *CLIChannel) awaitReply(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.replies:
			if !msg.IsProgress() {
				cmdutils.PrintResponse(msg.Content())
				return
			}
			fmt.Println("  ↳ " + msg.Content())
		}
	}
}

// Send queues a reply for the REPL.
func (c *CLIChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.replies <- msg:
		return nil
	}
}
