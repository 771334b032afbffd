package schema

import "context"

// Stop reasons reported by providers.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Usage is the token accounting of one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatRequest is one submission of the transcript to the model.
type ChatRequest struct {
	System      string
	Turns       []Turn
	Tools       []ToolDescriptor
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the fully assembled assistant reply.
type ChatResponse struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// HasToolUse reports whether the response contains at least one tool_use block.
func (r ChatResponse) HasToolUse() bool {
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			return true
		}
	}
	return false
}

// LLMProvider is the interface every chat-completion backend must satisfy.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	DefaultModel() string
}
