package dependency

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/providers"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/scheduler"
	"github.com/flipagent/flipagent/internal/tools"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = filepath.Join(t.TempDir(), "workspace")
	cfg.Providers.Anthropic.APIKey = "sk-ant-test"
	cfg.Storage.Database = ":memory:"
	cfg.Storage.CredentialKey = "test-key"
	return &cfg
}

func TestNewWiresServices(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &providers.AnthropicProvider{}, c.Provider())
	assert.NotNil(t, c.AgentLoop())
	assert.NotNil(t, c.MessageBus())
	assert.NotNil(t, c.Scheduler())
	assert.Equal(t, len(tools.Catalog()), c.Registry().Size())

	res := c.Dispatcher().Execute(context.Background(), "fee_calculator", map[string]any{"platform": "ebay", "price": 100.0})
	raw, ok := res.Payload.(json.RawMessage)
	require.True(t, ok, "expected a rendered payload, got %#v", res.Payload)
	assert.Contains(t, string(raw), "13.55")
}

func TestNewCredentialStoreShared(t *testing.T) {
	c, err := New(testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Credentials().Save(bus.SenderIDCLI, schema.PlatformEbay, schema.Credentials{"access_token": "tok"}))
	platforms, err := c.Credentials().Platforms(bus.SenderIDCLI)
	require.NoError(t, err)
	assert.Equal(t, []schema.Platform{schema.PlatformEbay}, platforms)
}

func TestNewRequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Anthropic.APIKey = ""

	_, err := New(cfg)
	assert.ErrorContains(t, err, "no API key configured")
}

func TestNewRequiresCredentialKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.CredentialKey = ""

	_, err := New(cfg)
	assert.ErrorContains(t, err, "credentialKey")
}

func TestScheduledTurnDelivers(t *testing.T) {
	b := bus.NewMessageBus(1)
	ch, to := "telegram", "42"
	job := scheduler.Job{ID: "abc12345", Payload: scheduler.Payload{Message: "/help", Deliver: true, Channel: &ch, To: &to}}

	c, err := New(testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	resp, err := scheduledTurn(c.AgentLoop(), b)(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, resp, "flipagent commands")

	out := <-b.OutboundChan()
	assert.Equal(t, "telegram", out.Channel())
	assert.Equal(t, "42", out.ChatID())
	assert.Equal(t, resp, out.Content())
}
