// Package config defines the configuration schema for flipagent.
//
// JSON keys use camelCase. Sections live in sub-packages; Config ties them
// together and resolves paths.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/flipagent/flipagent/internal/config/agent"
	"github.com/flipagent/flipagent/internal/config/channel"
	"github.com/flipagent/flipagent/internal/config/gateway"
	"github.com/flipagent/flipagent/internal/config/platform"
	"github.com/flipagent/flipagent/internal/config/provider"
	"github.com/flipagent/flipagent/internal/config/storage"
	"github.com/flipagent/flipagent/internal/config/tool"
)

// Config is the root configuration object, loaded from ~/.flipagent/config.json.
type Config struct {
	Agents    agent.AgentsConfig       `json:"agents"`
	Channels  channel.ChannelsConfig   `json:"channels"`
	Providers provider.ProvidersConfig `json:"providers"`
	Gateway   gateway.GatewayConfig    `json:"gateway"`
	Platforms platform.PlatformsConfig `json:"platforms"`
	Storage   storage.StorageConfig    `json:"storage"`
	Tools     tool.ToolsConfig         `json:"tools"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Agents:    agent.DefaultAgentsConfig(),
		Channels:  channel.DefaultChannelsConfig(),
		Providers: provider.DefaultProvidersConfig(),
		Gateway:   gateway.DefaultGatewayConfig(),
		Platforms: platform.DefaultPlatformsConfig(),
		Storage:   storage.DefaultStorageConfig(),
		Tools:     tool.DefaultToolConfigs(),
	}
}

// WorkspacePath returns the expanded absolute path to the agent workspace.
func (c *Config) WorkspacePath() string {
	ws := c.Agents.Defaults.Workspace
	if ws == "" {
		ws = "~/.flipagent/workspace"
	}
	return expandHome(ws)
}

// DatabasePath returns the expanded path of the SQLite database.
func (c *Config) DatabasePath() string {
	db := c.Storage.Database
	if db == "" {
		return filepath.Join(DataDir(), "flipagent.db")
	}
	if db == ":memory:" {
		return db
	}
	return expandHome(db)
}

// ProviderByName returns a pointer to the ProviderConfig field matching the
// given registry name (e.g. "openrouter", "anthropic"). Returns nil if unknown.
func (c *Config) ProviderByName(name string) *provider.ProviderConfig {
	return c.Providers.ByName(name)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
