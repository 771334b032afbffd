package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flipagent/flipagent/internal/agent"
	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/channels"
	"github.com/flipagent/flipagent/internal/dependency"
	"github.com/flipagent/flipagent/internal/watchlist"
)

var (
	gatewayPort        int
	gatewayInteractive bool
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the flipagent gateway (channels, webchat, scheduler)",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "Gateway port (overrides gateway.port)")
	gatewayCmd.Flags().BoolVarP(&gatewayInteractive, "interactive", "i", false, "Also chat on this terminal")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	loop := container.AgentLoop()
	msgBus := container.MessageBus()
	sched := container.Scheduler()

	fmt.Printf("%s Starting flipagent gateway on %s...\n", logo, cfg.Gateway.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channelMgr := channels.NewManager(cfg, msgBus, gatewayInteractive)
	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	} else {
		fmt.Println("Warning: no channels enabled")
	}

	srv := &http.Server{
		Addr:              cfg.Gateway.Addr(),
		Handler:           channelMgr.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return sched.Start(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gateway http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Gateway.WatchIntervalMinutes > 0 {
		watch := watchlist.NewService(cfg.WorkspacePath(), watchlistTurn(loop, msgBus, cfg.Gateway.WatchDeliverTo),
			time.Duration(cfg.Gateway.WatchIntervalMinutes)*time.Minute)
		g.Go(func() error { return watch.Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}

// watchlistTurn runs the watchlist prompt and routes the reply to deliverTo
// ("channel:chatID") when set.
func watchlistTurn(loop *agent.AgentLoop, b bus.Bus, deliverTo string) watchlist.OnCheckFunc {
	return func(ctx context.Context, prompt string) error {
		channel, chatID := bus.ParseRoutingKey(deliverTo)
		if channel == "" {
			channel, chatID = bus.ChannelCLI, bus.ChatIDDirect
		}
		resp := loop.ProcessDirect(ctx, prompt, watchlist.SessionKey, string(channel), chatID)
		if deliverTo == "" || chatID == "" || resp == "" {
			slog.Info("watchlist: check finished", "length", len(resp))
			return nil
		}
		b.PublishOutbound(bus.NewOutboundMessage(string(channel), chatID, resp))
		return nil
	}
}
