package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/schema"
)

func transcript() []schema.Turn {
	return []schema.Turn{
		schema.NewTextTurn(schema.RoleUser, "fees for $100 on ebay?"),
		{Role: schema.RoleAssistant, Content: []schema.ContentBlock{
			schema.TextBlock("Checking."),
			schema.ToolUseBlock("toolu_1", "fee_calculator", map[string]any{"platform": "ebay", "price": 100.0}),
		}},
		{Role: schema.RoleUser, Content: []schema.ContentBlock{
			schema.ToolResultBlock("toolu_1", `{"totalFees":13.55}`, false),
		}},
	}
}

var feeTool = schema.ToolDescriptor{
	Name:        "fee_calculator",
	Description: "Estimate fees",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"price":{"type":"number"}}}`),
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	raw, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	var body map[string]any
	assert.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestOpenAIChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		got = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"choices": [{"message": {"content": null, "tool_calls": [
				{"id": "call_9", "type": "function", "function": {"name": "scan_ebay", "arguments": "{\"query\": \"lego\""}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 15}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "deepseek/deepseek-chat", "deepseek", nil)
	resp, err := p.Chat(context.Background(), schema.ChatRequest{
		System: "be brief",
		Turns:  transcript(),
		Tools:  []schema.ToolDescriptor{feeTool},
	})
	require.NoError(t, err)

	assert.Equal(t, "deepseek-chat", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assistant := msgs[2].(map[string]any)
	assert.Equal(t, "Checking.", assistant["content"])
	assert.Len(t, assistant["tool_calls"], 1)
	tool := msgs[3].(map[string]any)
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "toolu_1", tool["tool_call_id"])
	assert.Equal(t, "auto", got["tool_choice"])

	assert.Equal(t, schema.StopToolUse, resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "scan_ebay", resp.Content[0].Name)
	assert.Equal(t, map[string]any{"query": "lego"}, resp.Content[0].Input, "truncated arguments are repaired")
	assert.Equal(t, 120, resp.Usage.InputTokens)
}

func TestAnthropicChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		got = decodeBody(t, r)
		_, _ = io.WriteString(w, `{
			"content": [{"type": "text", "text": "eBay takes $13.55."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 300, "output_tokens": 9}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", srv.URL, "claude-sonnet-4-5", nil)
	resp, err := p.Chat(context.Background(), schema.ChatRequest{
		System: "be brief",
		Turns:  transcript(),
		Tools:  []schema.ToolDescriptor{feeTool},
	})
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 3)
	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_1", result["tool_use_id"])
	tools := got["tools"].([]any)
	assert.Equal(t, map[string]any{"type": "ephemeral"}, tools[0].(map[string]any)["cache_control"])

	assert.Equal(t, schema.StopEndTurn, resp.StopReason)
	assert.Equal(t, "eBay takes $13.55.", schema.Turn{Content: resp.Content}.Text())
	assert.False(t, resp.HasToolUse())
}

func TestAPIErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"message":"prompt is too long: 201000 tokens"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("key", srv.URL, "claude-sonnet-4-5", nil)
	_, err := p.Chat(context.Background(), schema.ChatRequest{Turns: transcript()})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "rate limit exceeded", apiErr.Message)

	status = http.StatusBadRequest
	_, err = p.Chat(context.Background(), schema.ChatRequest{Turns: transcript()})
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "prompt is too long")
}

func TestNewPicksImplementation(t *testing.T) {
	assert.IsType(t, &AnthropicProvider{}, New(Params{ProviderName: "anthropic", DefaultModel: "claude-sonnet-4-5"}))
	assert.IsType(t, &OpenAIProvider{}, New(Params{ProviderName: "openrouter", DefaultModel: "anthropic/claude-sonnet-4-5"}))
	assert.IsType(t, &OpenAIProvider{}, New(Params{DefaultModel: "gpt-4o"}))
}

func TestRegistryMatching(t *testing.T) {
	assert.Equal(t, "anthropic", FindByModel("claude-opus-4-1").Name)
	assert.Equal(t, "deepseek", FindByModel("deepseek/deepseek-chat").Name)
	assert.Nil(t, FindByModel("mystery-model"))
	assert.Equal(t, "openrouter", FindGateway("", "sk-or-abc", "").Name)
	assert.Nil(t, FindGateway("", "sk-abc", ""))
}

func TestRepairJSON(t *testing.T) {
	out, err := repairJSON(`{"query": "switch"}}`)
	require.NoError(t, err)
	assert.Equal(t, "switch", out["query"])

	_, err = repairJSON(`not json`)
	assert.Error(t, err)
}
