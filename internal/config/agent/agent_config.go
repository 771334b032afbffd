package agent

import (
	"time"

	"github.com/flipagent/flipagent/internal/schema"
)

type AgentDefaults struct {
	Workspace    string  `json:"workspace"`
	Model        string  `json:"model"`
	MaxTokens    int     `json:"maxTokens"`
	Temperature  float64 `json:"temperature"`
	MaxToolIter  int     `json:"maxToolIterations"`
	MemoryWindow int     `json:"memoryWindow"`

	// Tool selection and execution limits.
	MaxTools           int `json:"maxTools"`
	ToolTimeoutSeconds int `json:"toolTimeoutSeconds"`
	MaxParallelTools   int `json:"maxParallelTools"`
	MaxToolResultChars int `json:"maxToolResultChars"`
}

type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

func defaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:          "~/.flipagent/workspace",
		Model:              "anthropic/claude-sonnet-4-5",
		MaxTokens:          4096,
		Temperature:        0.3,
		MaxToolIter:        10,
		MemoryWindow:       40,
		MaxTools:           50,
		ToolTimeoutSeconds: 30,
		MaxParallelTools:   5,
		MaxToolResultChars: 16000,
	}
}

func DefaultAgentsConfig() AgentsConfig {
	return AgentsConfig{Defaults: defaultAgentDefaults()}
}

// Settings converts the defaults into loop settings.
func (d AgentDefaults) Settings() schema.AgentSettings {
	return schema.NewAgentSettings(d.Model, d.MaxToolIter, d.Temperature, d.MaxTokens, d.MemoryWindow, d.MaxTools)
}

// ExecutorSettings converts the defaults into tool dispatch limits.
func (d AgentDefaults) ExecutorSettings() schema.ExecutorSettings {
	return schema.ExecutorSettings{
		ToolTimeout:    time.Duration(d.ToolTimeoutSeconds) * time.Second,
		MaxParallel:    d.MaxParallelTools,
		MaxResultChars: d.MaxToolResultChars,
	}
}
