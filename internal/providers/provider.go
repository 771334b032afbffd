// Package providers implements schema.LLMProvider for the Anthropic Messages
// API and OpenAI-compatible chat completion endpoints.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flipagent/flipagent/internal/schema"
)

const (
	defaultMaxTokens = 4096
	requestTimeout   = 120 * time.Second
)

// Params are the raw values needed to construct any schema.LLMProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "openrouter", "anthropic"
}

// New creates the provider for p: the native Anthropic client when the
// resolved spec speaks the Messages API, the OpenAI-compatible one otherwise.
func New(p Params) schema.LLMProvider {
	spec := FindByName(p.ProviderName)
	if spec == nil {
		spec = FindByModel(p.DefaultModel)
	}
	if (spec != nil && spec.Anthropic) || strings.Contains(strings.ToLower(p.APIBase), "anthropic.com") {
		return NewAnthropicProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ExtraHeaders)
	}
	return NewOpenAIProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ProviderName, p.ExtraHeaders)
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

func newAPIError(resp *resty.Response) *APIError {
	return &APIError{StatusCode: resp.StatusCode(), Message: friendlyHTTPError(resp.StatusCode(), resp.Body())}
}

func friendlyHTTPError(code int, body []byte) string {
	if code == http.StatusTooManyRequests {
		return "rate limit exceeded"
	}
	// Prefer the provider's own message when the body is a JSON error envelope.
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

func newRestyClient(baseURL string, headers map[string]string) *resty.Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(requestTimeout)
	client.SetHeader("Content-Type", "application/json")
	for k, v := range headers {
		client.SetHeader(k, v)
	}
	return client
}

// repairJSON attempts to unmarshal JSON, retrying after stripping trailing
// garbage characters. Some models emit truncated tool arguments.
func repairJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	// Attempt 1: trim trailing non-JSON characters.
	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	if err := json.Unmarshal([]byte(stripped), &out); err == nil {
		return out, nil
	}

	// Attempt 2: find the last complete JSON object.
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if err := json.Unmarshal([]byte(raw[:i+1]), &out); err == nil {
			return out, nil
		}
	}

	return map[string]any{}, fmt.Errorf("cannot repair JSON: %s", raw)
}

// stripModelPrefix removes a leading "<prefix>/" from model.
func stripModelPrefix(model, prefix string) string {
	if prefix == "" {
		return model
	}
	full := prefix + "/"
	if strings.HasPrefix(strings.ToLower(model), full) {
		return model[len(full):]
	}
	return model
}

func inputSchema(d schema.ToolDescriptor) json.RawMessage {
	if len(d.InputSchema) == 0 {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return d.InputSchema
}
