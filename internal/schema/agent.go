package schema

import (
	"context"
	"time"
)

type AgentSettings struct {
	Model        string
	MaxIter      int
	Temperature  float64
	MaxTokens    int
	MemoryWindow int
	MaxTools     int
}

func NewAgentSettings(model string, maxIter int, temperature float64, maxTokens int, memoryWindow int, maxTools int) AgentSettings {
	return AgentSettings{
		Model:        model,
		MaxIter:      maxIter,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		MemoryWindow: memoryWindow,
		MaxTools:     maxTools,
	}
}

// ExecutorSettings bounds tool execution.
type ExecutorSettings struct {
	ToolTimeout    time.Duration
	MaxParallel    int
	MaxResultChars int
}

type AgentLooper interface {
	// ProcessDirect handles a message outside the bus as the console owner.
	ProcessDirect(ctx context.Context, content, key, channel, chatID string) string
	// ProcessAs handles a message outside the bus on behalf of userID.
	ProcessAs(ctx context.Context, userID, content, key, channel, chatID string) string
	// Run consumes the bus until ctx is cancelled.
	Run(ctx context.Context) error
}
