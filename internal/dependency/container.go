// Package dependency wires core flipagent services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/dig"

	"github.com/flipagent/flipagent/internal/agent"
	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/credentials"
	"github.com/flipagent/flipagent/internal/platform"
	"github.com/flipagent/flipagent/internal/providers"
	"github.com/flipagent/flipagent/internal/scheduler"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/session"
	"github.com/flipagent/flipagent/internal/store"
	"github.com/flipagent/flipagent/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg        *config.Config
	provider   schema.LLMProvider
	msgBus     *bus.MessageBus
	loop       *agent.AgentLoop
	sched      *scheduler.Service
	data       *store.Store
	creds      *credentials.Store
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
}

func (c *Container) Config() *config.Config          { return c.cfg }
func (c *Container) Provider() schema.LLMProvider    { return c.provider }
func (c *Container) MessageBus() *bus.MessageBus     { return c.msgBus }
func (c *Container) AgentLoop() *agent.AgentLoop     { return c.loop }
func (c *Container) Scheduler() *scheduler.Service   { return c.sched }
func (c *Container) Store() *store.Store             { return c.data }
func (c *Container) Credentials() *credentials.Store { return c.creds }
func (c *Container) Registry() *tools.Registry       { return c.registry }
func (c *Container) Dispatcher() *tools.Dispatcher   { return c.dispatcher }

// Close releases the database handle.
func (c *Container) Close() error { return c.data.Close() }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		newProvider,
		newMessageBus,
		newSessionManager,
		newStore,
		newCredentialStore,
		newPlatformClient,
		newSchedulerService,
		tools.NewBuiltinRegistry,
		newDispatcher,
		newPromptBuilder,
		newRunner,
		newAgentLoop,
	}
	for _, fn := range constructors {
		if err := d.Provide(fn); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		msgBus *bus.MessageBus,
		loop *agent.AgentLoop,
		sched *scheduler.Service,
		data *store.Store,
		creds *credentials.Store,
		registry *tools.Registry,
		dispatcher *tools.Dispatcher,
	) {
		sched.OnJob(scheduledTurn(loop, msgBus))
		result = &Container{
			cfg:        cfg,
			provider:   provider,
			msgBus:     msgBus,
			loop:       loop,
			sched:      sched,
			data:       data,
			creds:      creds,
			registry:   registry,
			dispatcher: dispatcher,
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	params := cfg.ProviderParams()
	if params.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for model %q, edit %s", params.DefaultModel, config.ConfigPath())
	}
	return providers.New(params), nil
}

func newMessageBus() *bus.MessageBus {
	return bus.NewMessageBus(100)
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.WorkspacePath())
}

func newStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.DatabasePath())
}

func newCredentialStore(cfg *config.Config, data *store.Store) (*credentials.Store, error) {
	if cfg.Storage.CredentialKey == "" {
		return nil, fmt.Errorf("storage.credentialKey is not set, run `flipagent onboard` first")
	}
	return credentials.New(data.DB(), cfg.Storage.CredentialKey)
}

func newPlatformClient(cfg *config.Config) *platform.Client {
	endpoints := make(map[schema.Platform]platform.Endpoint, len(schema.Marketplaces))
	for _, p := range schema.Marketplaces {
		pc := cfg.Platforms.ByPlatform(p)
		if pc == nil || pc.BaseURL == "" {
			continue
		}
		endpoints[p] = platform.Endpoint{BaseURL: pc.BaseURL, RequestsPerSecond: pc.RequestsPerSecond}
	}
	return platform.NewClient(endpoints, time.Duration(cfg.Platforms.TimeoutSeconds)*time.Second)
}

func newSchedulerService() *scheduler.Service {
	return scheduler.NewService(config.SchedulePath())
}

func newDispatcher(
	cfg *config.Config,
	registry *tools.Registry,
	client *platform.Client,
	data *store.Store,
	creds *credentials.Store,
	sched *scheduler.Service,
) *tools.Dispatcher {
	handlers := tools.BuiltinHandlers(tools.Deps{
		Registry:    registry,
		Platforms:   client,
		Records:     data,
		Credentials: creds,
		Scheduler:   sched,
		Fetcher:     tools.NewPageFetcher(cfg.Tools.Web.FetchMaxChars),
	})
	return tools.NewDispatcher(registry, handlers, creds, cfg.Agents.Defaults.ExecutorSettings())
}

func newPromptBuilder(cfg *config.Config, creds *credentials.Store) *agent.PromptBuilder {
	return agent.NewPromptBuilder(cfg.WorkspacePath(), creds)
}

func newRunner(cfg *config.Config, p schema.LLMProvider, dispatcher *tools.Dispatcher) *agent.Runner {
	return agent.NewRunner(p, dispatcher, cfg.Agents.Defaults.Settings())
}

func newAgentLoop(
	cfg *config.Config,
	b *bus.MessageBus,
	sessions *session.Manager,
	registry *tools.Registry,
	runner *agent.Runner,
	prompt *agent.PromptBuilder,
) *agent.AgentLoop {
	return agent.NewAgentLoop(b, cfg.Agents.Defaults.Settings(), sessions, registry, runner, prompt)
}

// scheduledTurn runs a fired job through the agent and optionally delivers
// the reply to the job's channel.
func scheduledTurn(loop *agent.AgentLoop, b bus.Bus) scheduler.OnJobFunc {
	return func(ctx context.Context, job scheduler.Job) (string, error) {
		ch, chatID := string(bus.ChannelCLI), bus.ChatIDDirect
		if job.Payload.Channel != nil && *job.Payload.Channel != "" {
			ch = *job.Payload.Channel
		}
		if job.Payload.To != nil && *job.Payload.To != "" {
			chatID = *job.Payload.To
		}

		resp := loop.ProcessAs(ctx, job.Payload.UserID, job.Payload.Message, job.SessionKey(), ch, chatID)
		if job.Payload.Deliver && job.Payload.To != nil && resp != "" {
			b.PublishOutbound(bus.NewOutboundMessage(ch, chatID, resp))
		}
		return resp, nil
	}
}
