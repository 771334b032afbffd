package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/platform"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/tools"
)

// scriptedProvider replays responses in order; the last one repeats.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []schema.ChatResponse
	err       error
	requests  []schema.ChatRequest
	onCall    func(n int)
}

func (p *scriptedProvider) Chat(_ context.Context, req schema.ChatRequest) (schema.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	req.Turns = append([]schema.Turn(nil), req.Turns...)
	p.requests = append(p.requests, req)
	if p.onCall != nil {
		p.onCall(len(p.requests))
	}
	if p.err != nil {
		return schema.ChatResponse{}, p.err
	}
	i := min(len(p.requests)-1, len(p.responses)-1)
	return p.responses[i], nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func textResponse(s string) schema.ChatResponse {
	return schema.ChatResponse{Content: []schema.ContentBlock{schema.TextBlock(s)}, StopReason: schema.StopEndTurn}
}

func toolResponse(text string, uses ...schema.ContentBlock) schema.ChatResponse {
	var blocks []schema.ContentBlock
	if text != "" {
		blocks = append(blocks, schema.TextBlock(text))
	}
	return schema.ChatResponse{Content: append(blocks, uses...), StopReason: schema.StopToolUse}
}

type nopInvoker struct{}

func (nopInvoker) Invoke(context.Context, platform.Operation, schema.Credentials, map[string]any) (any, error) {
	return map[string]any{"ok": true}, nil
}

func (nopInvoker) Configured(schema.Platform) bool { return true }

func newDispatcher(t *testing.T) (*tools.Registry, *tools.Dispatcher) {
	t.Helper()
	reg, err := tools.NewBuiltinRegistry()
	require.NoError(t, err)
	handlers := tools.BuiltinHandlers(tools.Deps{Registry: reg, Platforms: nopInvoker{}})
	return reg, tools.NewDispatcher(reg, handlers, nil, schema.ExecutorSettings{})
}

func newRunner(t *testing.T, p schema.LLMProvider, maxIter int) (*tools.Registry, *Runner) {
	reg, d := newDispatcher(t)
	return reg, NewRunner(p, d, schema.NewAgentSettings("test-model", maxIter, 0, 1024, 40, 50))
}

func userTurn(s string) []schema.Turn {
	return []schema.Turn{schema.NewTextTurn(schema.RoleUser, s)}
}

func TestRunToolThenAnswer(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ChatResponse{
		toolResponse("Let me calculate.", schema.ToolUseBlock("toolu_a", "fee_calculator", map[string]any{"platform": "ebay", "price": 100.0})),
		textResponse("eBay fees on $100 come to $13.55."),
	}}
	reg, r := newRunner(t, p, 10)

	var progress []string
	out := r.Run(context.Background(), "sys", userTurn("fees on ebay for $100?"), reg.All(), func(s string) {
		progress = append(progress, s)
	})

	assert.Equal(t, ReasonFinal, out.Reason)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, "eBay fees on $100 come to $13.55.", out.Text)
	assert.Equal(t, []string{"fee_calculator"}, out.ToolsUsed)
	assert.Equal(t, []string{"Let me calculate.", `fee_calculator("ebay")`}, progress)

	require.Len(t, out.Transcript, 3)
	result := out.Transcript[2].Content[0]
	assert.Equal(t, schema.BlockToolResult, result.Type)
	assert.Equal(t, "toolu_a", result.ToolUseID)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content, `"totalFees":13.55`)

	require.Len(t, p.requests, 2)
	assert.Equal(t, "sys", p.requests[1].System)
	assert.Len(t, p.requests[1].Turns, 3)
}

func TestRunStopsAtCap(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ChatResponse{
		toolResponse("Still looking.", schema.ToolUseBlock("", "list_platforms", nil)),
	}}
	reg, r := newRunner(t, p, 10)

	out := r.Run(context.Background(), "", userTurn("loop forever"), reg.Core(), nil)

	assert.Equal(t, ReasonMaxIterations, out.Reason)
	assert.Equal(t, 10, out.Iterations)
	assert.Equal(t, 10, p.calls())
	assert.True(t, strings.HasPrefix(out.Text, "Still looking."))
	assert.True(t, strings.HasSuffix(out.Text,
		"⚠️ Reached the maximum number of tool iterations (10). Ask me to continue if you need more."))
	assert.Len(t, out.ToolsUsed, 10)
}

func TestRunGeneratesMissingIDs(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ChatResponse{
		toolResponse("",
			schema.ToolUseBlock("", "list_platforms", nil),
			schema.ToolUseBlock("", "search_tools", map[string]any{"query": "ebay"}),
		),
		textResponse("done"),
	}}
	reg, r := newRunner(t, p, 10)
	out := r.Run(context.Background(), "", userTurn("hi"), reg.Core(), nil)

	require.Len(t, out.Transcript, 3)
	uses := out.Transcript[1].ToolUses()
	results := out.Transcript[2].Content
	require.Len(t, uses, 2)
	require.Len(t, results, 2)
	for i := range uses {
		assert.True(t, strings.HasPrefix(uses[i].ID, "toolu_"))
		assert.Equal(t, uses[i].ID, results[i].ToolUseID)
	}
	assert.NotEqual(t, uses[0].ID, uses[1].ID)
}

func TestRunToolFailureIsNotTerminal(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ChatResponse{
		toolResponse("", schema.ToolUseBlock("toolu_1", "get_amazon_product", map[string]any{"asin": "B0C1"})),
		textResponse("You need to connect Amazon first."),
	}}
	reg, r := newRunner(t, p, 10)
	out := r.Run(context.Background(), "", userTurn("check B0C1"), reg.All(), nil)

	assert.Equal(t, ReasonFinal, out.Reason)
	res := out.Transcript[2].Content[0]
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, `"code":"not_configured"`)
	assert.Contains(t, res.Content, "Amazon credentials not configured. Use setup_credentials to add them.")
}

func TestRunModelError(t *testing.T) {
	p := &scriptedProvider{err: errors.New("API error 400: prompt is too long")}
	reg, r := newRunner(t, p, 10)
	out := r.Run(context.Background(), "", userTurn("hi"), reg.Core(), nil)

	assert.Equal(t, ReasonModelError, out.Reason)
	assert.Equal(t, replyContextOverflow, out.Text)
	assert.Equal(t, 1, p.calls())

	p.err = errors.New("connection reset by peer")
	out = r.Run(context.Background(), "", userTurn("hi"), reg.Core(), nil)
	assert.Equal(t, replyModelFailure, out.Text)
}

func TestRunCancelled(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ChatResponse{textResponse("never")}}
	reg, r := newRunner(t, p, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Run(ctx, "", userTurn("hi"), reg.Core(), nil)
	assert.Equal(t, ReasonCancelled, out.Reason)
	assert.Empty(t, out.Text)
	assert.Zero(t, p.calls())

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	p = &scriptedProvider{
		responses: []schema.ChatResponse{toolResponse("", schema.ToolUseBlock("toolu_1", "list_platforms", nil))},
		onCall:    func(int) { cancel() },
	}
	_, r = newRunner(t, p, 10)
	out = r.Run(ctx, "", userTurn("hi"), reg.Core(), nil)
	assert.Equal(t, ReasonCancelled, out.Reason)
	assert.Equal(t, 1, p.calls())
}
