package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/channels"
	"github.com/flipagent/flipagent/internal/dependency"
	"github.com/flipagent/flipagent/internal/shared/cmdutils"
)

const singleMessageTimeout = 5 * time.Minute

var (
	agentMessage string
	agentSession string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the agent in the terminal",
	Long: `Chat with the agent in the terminal.

With -m the message is answered once and the command exits. Otherwise an
interactive console starts; its session is cli:<chat> where <chat> is the
part of --session after the colon.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
	agentCmd.Flags().StringVarP(&agentSession, "session", "s", "cli:direct", "Session key (channel:chat)")
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channel, chatID := bus.ParseRoutingKey(agentSession)
	if chatID == "" {
		channel, chatID = bus.ChannelCLI, agentSession
	}
	loop := container.AgentLoop()

	if agentMessage != "" {
		ctx, cancel := context.WithTimeout(ctx, singleMessageTimeout)
		defer cancel()
		fmt.Fprintln(os.Stderr, "  ↳ thinking...")
		cmdutils.PrintResponse(loop.ProcessDirect(ctx, agentMessage, agentSession, string(channel), chatID))
		return nil
	}

	go func() { _ = loop.Run(ctx) }()
	return channels.RunTerminal(ctx, container.MessageBus(), chatID)
}
