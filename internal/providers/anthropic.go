package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/flipagent/flipagent/internal/schema"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider calls the Anthropic Messages API. Turns map onto its
// content blocks one to one.
type AnthropicProvider struct {
	client       *resty.Client
	defaultModel string
}

// NewAnthropicProvider constructs a provider. An empty apiBase means the public API.
func NewAnthropicProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string) *AnthropicProvider {
	if apiBase == "" {
		apiBase = FindByName("anthropic").DefaultAPIBase
	}
	client := newRestyClient(apiBase, extraHeaders)
	client.SetHeader("x-api-key", apiKey)
	client.SetHeader("anthropic-version", anthropicVersion)
	return &AnthropicProvider{client: client, defaultModel: defaultModel}
}

func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

type anthropicTool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"input_schema"`
	CacheControl *cacheControl   `json:"cache_control,omitempty"`
}

type anthropicText struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

var ephemeral = &cacheControl{Type: "ephemeral"}

// Chat implements schema.LLMProvider.
func (p *AnthropicProvider) Chat(ctx context.Context, req schema.ChatRequest) (schema.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]any{
		"model":       stripModelPrefix(model, "anthropic"),
		"messages":    toAnthropicMessages(req.Turns),
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	// Cache breakpoints: system prompt and last tool.
	if req.System != "" {
		body["system"] = []anthropicText{{Type: "text", Text: req.System, CacheControl: ephemeral}}
	}
	if len(req.Tools) > 0 {
		tools := make([]anthropicTool, len(req.Tools))
		for i, d := range req.Tools {
			tools[i] = anthropicTool{Name: d.Name, Description: d.Description, InputSchema: inputSchema(d)}
		}
		tools[len(tools)-1].CacheControl = ephemeral
		body["tools"] = tools
	}

	resp, err := p.client.R().SetContext(ctx).SetBody(body).Post("/messages")
	if err != nil {
		return schema.ChatResponse{}, fmt.Errorf("anthropic request: %w", err)
	}
	if resp.IsError() {
		return schema.ChatResponse{}, newAPIError(resp)
	}
	return parseAnthropicResponse(resp.Body())
}

func toAnthropicMessages(turns []schema.Turn) []map[string]any {
	out := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		blocks := make([]map[string]any, 0, len(t.Content))
		for _, b := range t.Content {
			switch b.Type {
			case schema.BlockText:
				if b.Text == "" {
					continue
				}
				blocks = append(blocks, map[string]any{"type": "text", "text": b.Text})
			case schema.BlockToolUse:
				input := b.Input
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, map[string]any{"type": "tool_use", "id": b.ID, "name": b.Name, "input": input})
			case schema.BlockToolResult:
				blocks = append(blocks, map[string]any{
					"type":        "tool_result",
					"tool_use_id": b.ToolUseID,
					"content":     b.Content,
					"is_error":    b.IsError,
				})
			}
		}
		if len(blocks) == 0 {
			blocks = append(blocks, map[string]any{"type": "text", "text": "(empty)"})
		}
		out = append(out, map[string]any{"role": string(t.Role), "content": blocks})
	}
	return out
}

type anthropicRespBody struct {
	Content []struct {
		Type  string         `json:"type"`
		Text  string         `json:"text"`  // type=text
		ID    string         `json:"id"`    // type=tool_use
		Name  string         `json:"name"`  // type=tool_use
		Input map[string]any `json:"input"` // type=tool_use
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func parseAnthropicResponse(raw []byte) (schema.ChatResponse, error) {
	var body anthropicRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.ChatResponse{}, fmt.Errorf("parse anthropic response: %w", err)
	}

	resp := schema.ChatResponse{
		StopReason: body.StopReason,
		Usage:      schema.Usage{InputTokens: body.Usage.InputTokens, OutputTokens: body.Usage.OutputTokens},
	}
	for _, block := range body.Content {
		switch block.Type {
		case "text":
			resp.Content = append(resp.Content, schema.TextBlock(block.Text))
		case "tool_use":
			resp.Content = append(resp.Content, schema.ToolUseBlock(block.ID, block.Name, block.Input))
		}
	}
	if resp.StopReason == "" {
		resp.StopReason = schema.StopEndTurn
	}
	return resp, nil
}
