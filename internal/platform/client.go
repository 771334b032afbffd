// Package platform invokes marketplace REST operations on behalf of tools.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/shared/llmutils"
)

// Operation names one marketplace REST call. Path may contain {name}
// placeholders filled from the tool input.
type Operation struct {
	Platform schema.Platform
	Method   string
	Path     string
}

func (op Operation) String() string {
	return fmt.Sprintf("%s %s %s", op.Platform, op.Method, op.Path)
}

// Endpoint is the per-marketplace connection setting.
type Endpoint struct {
	BaseURL           string
	RequestsPerSecond float64
}

// Error is returned for non-2xx marketplace responses.
type Error struct {
	Platform   schema.Platform
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Platform.DisplayName(), e.StatusCode, e.Body)
}

var rePathParam = regexp.MustCompile(`\{(\w+)\}`)

// Client is safe for concurrent use. Requests to one marketplace are paced
// by that marketplace's limiter.
type Client struct {
	client    *resty.Client
	endpoints map[schema.Platform]Endpoint

	mu       sync.Mutex
	limiters map[schema.Platform]*rate.Limiter
}

// NewClient creates a Client. A zero timeout means 30 seconds.
func NewClient(endpoints map[schema.Platform]Endpoint, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", "flipagent/1.0")

	return &Client{
		client:    client,
		endpoints: endpoints,
		limiters:  make(map[schema.Platform]*rate.Limiter),
	}
}

// Configured reports whether p has a base URL.
func (c *Client) Configured(p schema.Platform) bool {
	ep, ok := c.endpoints[p]
	return ok && ep.BaseURL != ""
}

// Invoke performs op with creds and input and returns the decoded JSON body.
func (c *Client) Invoke(ctx context.Context, op Operation, creds schema.Credentials, input map[string]any) (any, error) {
	ep, ok := c.endpoints[op.Platform]
	if !ok || ep.BaseURL == "" {
		return nil, fmt.Errorf("no endpoint configured for %s", op.Platform.DisplayName())
	}

	path, rest, err := fillPath(op.Path, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := c.limiter(op.Platform, ep).Wait(ctx); err != nil {
		return nil, err
	}

	req := c.client.R().SetContext(ctx)
	applyAuth(req, creds)

	method := strings.ToUpper(op.Method)
	switch method {
	case http.MethodGet, http.MethodDelete:
		for k, v := range rest {
			req.SetQueryParam(k, pathValue(v))
		}
	default:
		req.SetHeader("Content-Type", "application/json").SetBody(rest)
	}

	url := strings.TrimRight(ep.BaseURL, "/") + path
	slog.Debug("Platform request", "op", op.String(), "url", url)

	response, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if response.StatusCode() < 200 || response.StatusCode() >= 300 {
		return nil, &Error{
			Platform:   op.Platform,
			StatusCode: response.StatusCode(),
			Body:       llmutils.Truncate(strings.TrimSpace(response.String()), 500),
		}
	}

	body := response.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]any{"status": "ok"}, nil
	}
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		return map[string]any{"raw": llmutils.Truncate(string(body), 4000)}, nil
	}
	return out, nil
}

func (c *Client) limiter(p schema.Platform, ep Endpoint) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters[p]; ok {
		return l
	}
	rps := ep.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	c.limiters[p] = l
	return l
}

// fillPath substitutes {name} placeholders from input and returns the
// remaining, unused input keys.
func fillPath(path string, input map[string]any) (string, map[string]any, error) {
	rest := make(map[string]any, len(input))
	for k, v := range input {
		rest[k] = v
	}

	var missing []string
	filled := rePathParam.ReplaceAllStringFunc(path, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := rest[key]
		if !ok || fmt.Sprint(v) == "" {
			missing = append(missing, key)
			return m
		}
		delete(rest, key)
		return pathValue(v)
	})
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("missing path parameter(s): %s", strings.Join(missing, ", "))
	}
	return filled, rest, nil
}

func pathValue(v any) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(v)
}

func applyAuth(req *resty.Request, creds schema.Credentials) {
	if tok := creds["access_token"]; tok != "" {
		req.SetAuthToken(tok)
	}
	if key := creds["api_key"]; key != "" {
		req.SetHeader("X-API-Key", key)
	}
	if id := creds["app_id"]; id != "" {
		req.SetHeader("X-App-Id", id)
	}
}
