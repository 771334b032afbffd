package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/flipagent/flipagent/internal/schema"
)

// OpenAIProvider calls any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	client       *resty.Client
	defaultModel string
	gateway      *ProviderSpec // non-nil for gateway providers
	spec         *ProviderSpec // non-nil for standard providers
}

// NewOpenAIProvider constructs a provider from raw config values.
func NewOpenAIProvider(apiKey, apiBase, defaultModel, providerName string, extraHeaders map[string]string) *OpenAIProvider {
	gateway := FindGateway(providerName, apiKey, apiBase)

	var spec *ProviderSpec
	if gateway == nil {
		spec = FindByName(providerName)
		if spec == nil {
			spec = FindByModel(defaultModel)
		}
	}

	base := apiBase
	if base == "" {
		switch {
		case gateway != nil && gateway.DefaultAPIBase != "":
			base = gateway.DefaultAPIBase
		case spec != nil && spec.DefaultAPIBase != "":
			base = spec.DefaultAPIBase
		default:
			base = "https://api.openai.com/v1"
		}
	}

	client := newRestyClient(base, extraHeaders)
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}
	return &OpenAIProvider{client: client, defaultModel: defaultModel, gateway: gateway, spec: spec}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// Chat implements schema.LLMProvider.
func (p *OpenAIProvider) Chat(ctx context.Context, req schema.ChatRequest) (schema.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := map[string]any{
		"model":       p.resolveModel(model),
		"messages":    toOpenAIMessages(req.System, req.Turns),
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		body["tools"] = toOpenAITools(req.Tools)
		body["tool_choice"] = "auto"
	}

	resp, err := p.client.R().SetContext(ctx).SetBody(body).Post("/chat/completions")
	if err != nil {
		return schema.ChatResponse{}, fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return schema.ChatResponse{}, newAPIError(resp)
	}
	return parseOpenAIResponse(resp.Body())
}

// resolveModel strips routing prefixes so the API receives the model name it
// expects. Gateways keep "vendor/model" and only lose their own prefix.
func (p *OpenAIProvider) resolveModel(model string) string {
	if p.gateway != nil {
		return stripModelPrefix(model, p.gateway.ModelPrefix)
	}
	if p.spec != nil {
		if m := stripModelPrefix(model, p.spec.ModelPrefix); m != model {
			return m
		}
	}
	if prefix, rest, ok := strings.Cut(model, "/"); ok && FindByName(strings.ToLower(prefix)) != nil {
		return rest
	}
	return model
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// toOpenAIMessages flattens block turns into chat messages. Each tool_result
// becomes its own role:"tool" message.
func toOpenAIMessages(system string, turns []schema.Turn) []map[string]any {
	out := make([]map[string]any, 0, len(turns)+1)
	if system != "" {
		out = append(out, map[string]any{"role": "system", "content": system})
	}

	for _, t := range turns {
		switch t.Role {
		case schema.RoleAssistant:
			msg := map[string]any{"role": "assistant", "content": nil}
			if text := t.Text(); text != "" {
				msg["content"] = text
			}
			var calls []openAIToolCall
			for _, b := range t.Content {
				if b.Type != schema.BlockToolUse {
					continue
				}
				args, _ := json.Marshal(b.Input)
				if b.Input == nil {
					args = []byte("{}")
				}
				call := openAIToolCall{ID: b.ID, Type: "function"}
				call.Function.Name = b.Name
				call.Function.Arguments = string(args)
				calls = append(calls, call)
			}
			if len(calls) > 0 {
				msg["tool_calls"] = calls
			}
			out = append(out, msg)

		default:
			for _, b := range t.Content {
				if b.Type == schema.BlockToolResult {
					out = append(out, map[string]any{
						"role":         "tool",
						"tool_call_id": b.ToolUseID,
						"content":      b.Content,
					})
				}
			}
			if text := t.Text(); text != "" || t.IsPlainText() {
				out = append(out, map[string]any{"role": "user", "content": text})
			}
		}
	}
	return out
}

func toOpenAITools(tools []schema.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, d := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  inputSchema(d),
			},
		})
	}
	return out
}

type openAIRespBody struct {
	Choices []struct {
		Message struct {
			Content   *string          `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func parseOpenAIResponse(raw []byte) (schema.ChatResponse, error) {
	var body openAIRespBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return schema.ChatResponse{}, fmt.Errorf("parse chat completion: %w", err)
	}
	if len(body.Choices) == 0 {
		return schema.ChatResponse{}, fmt.Errorf("empty choices in response")
	}

	choice := body.Choices[0]
	var blocks []schema.ContentBlock
	if c := choice.Message.Content; c != nil && *c != "" {
		blocks = append(blocks, schema.TextBlock(*c))
	}
	for _, tc := range choice.Message.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("Failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
		}
		blocks = append(blocks, schema.ToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	resp := schema.ChatResponse{
		Content: blocks,
		Usage: schema.Usage{
			InputTokens:  body.Usage.PromptTokens,
			OutputTokens: body.Usage.CompletionTokens,
		},
	}
	switch {
	case resp.HasToolUse():
		resp.StopReason = schema.StopToolUse
	case choice.FinishReason == "length":
		resp.StopReason = schema.StopMaxTokens
	default:
		resp.StopReason = schema.StopEndTurn
	}
	return resp, nil
}
