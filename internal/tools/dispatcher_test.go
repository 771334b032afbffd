package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/schema"
)

type memCreds struct {
	mu   sync.Mutex
	data map[string]schema.Credentials
}

func newMemCreds() *memCreds { return &memCreds{data: map[string]schema.Credentials{}} }

func (m *memCreds) key(u string, p schema.Platform) string { return u + "/" + string(p) }

func (m *memCreds) Lookup(u string, p schema.Platform) (schema.Credentials, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[m.key(u, p)]
	return c, ok
}

func (m *memCreds) Save(u string, p schema.Platform, c schema.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[m.key(u, p)] = c
	return nil
}

func (m *memCreds) Delete(u string, p schema.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[m.key(u, p)]
	delete(m.data, m.key(u, p))
	return ok, nil
}

func (m *memCreds) Platforms(u string) ([]schema.Platform, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []schema.Platform
	for _, p := range schema.Marketplaces {
		if _, ok := m.data[m.key(u, p)]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func testRegistry(t *testing.T, extra ...schema.ToolDescriptor) *Registry {
	t.Helper()
	b := NewRegistryBuilder()
	require.NoError(t, b.RegisterAll(Catalog()))
	require.NoError(t, b.RegisterAll(extra))
	return b.Build()
}

func errorOf(t *testing.T, res schema.ToolResult) ErrorPayload {
	t.Helper()
	require.True(t, res.IsError, "expected an error result, got %#v", res.Payload)
	p, ok := res.Payload.(ErrorPayload)
	require.True(t, ok)
	assert.Equal(t, "error", p.Status)
	return p
}

func TestExecuteUnknownTool(t *testing.T) {
	d := NewDispatcher(testRegistry(t), nil, nil, schema.ExecutorSettings{})
	res := d.Execute(context.Background(), "teleport", nil)
	assert.Equal(t, CodeUnknownTool, errorOf(t, res).Code)
	assert.Equal(t, "teleport", res.Name)
}

func TestExecuteUnboundIsUnavailable(t *testing.T) {
	d := NewDispatcher(testRegistry(t), map[string]schema.Handler{}, nil, schema.ExecutorSettings{})
	res := d.Execute(context.Background(), "profit_report", nil)
	assert.Equal(t, CodeUnavailable, errorOf(t, res).Code)
}

func TestExecuteInvalidInput(t *testing.T) {
	d := NewDispatcher(testRegistry(t), BuiltinHandlers(Deps{}), nil, schema.ExecutorSettings{})
	res := d.Execute(context.Background(), "fee_calculator", map[string]any{"platform": "etsy", "price": 10})
	assert.Equal(t, CodeInvalidInput, errorOf(t, res).Code)

	res = d.Execute(context.Background(), "fee_calculator", map[string]any{"platform": "ebay"})
	assert.Equal(t, CodeInvalidInput, errorOf(t, res).Code)
}

func TestInputValidatorNumbers(t *testing.T) {
	d, ok := testRegistry(t).Get("scan_ebay")
	require.True(t, ok)
	v := newInputValidator()

	assert.NoError(t, v.Validate(d, map[string]any{"query": "lego", "max_results": 5}))
	assert.NoError(t, v.Validate(d, map[string]any{"query": "lego", "max_results": 5.0}))
	assert.Error(t, v.Validate(d, map[string]any{"query": "lego", "max_results": 2.5}))
	assert.Error(t, v.Validate(d, map[string]any{"query": "lego", "max_results": 500}))
	assert.Error(t, v.Validate(d, map[string]any{"max_results": 5}))
}

// Amazon credentials are missing: the handler never runs and the model gets
// an actionable message.
func TestExecuteMissingCredentials(t *testing.T) {
	called := false
	handlers := map[string]schema.Handler{
		"get_amazon_product": schema.HandlerFunc(func(context.Context, map[string]any) (any, error) {
			called = true
			return nil, nil
		}),
	}
	d := NewDispatcher(testRegistry(t), handlers, newMemCreds(), schema.ExecutorSettings{})

	ctx := WithTurnContext(context.Background(), TurnContext{UserID: "u1"})
	res := d.Execute(ctx, "get_amazon_product", map[string]any{"asin": "B000"})

	p := errorOf(t, res)
	assert.Equal(t, CodeNotConfigured, p.Code)
	assert.Equal(t, "Amazon credentials not configured. Use setup_credentials to add them.", p.Message)
	assert.False(t, called)
}

func TestExecutePassesCredentials(t *testing.T) {
	creds := newMemCreds()
	require.NoError(t, creds.Save("u1", schema.PlatformEbay, schema.Credentials{"access_token": "tok"}))

	var seen schema.Credentials
	handlers := map[string]schema.Handler{
		"get_ebay_item": schema.HandlerFunc(func(ctx context.Context, _ map[string]any) (any, error) {
			seen = CredentialsFrom(ctx)
			return map[string]any{"title": "Switch"}, nil
		}),
	}
	d := NewDispatcher(testRegistry(t), handlers, creds, schema.ExecutorSettings{})
	ctx := WithTurnContext(context.Background(), TurnContext{UserID: "u1"})

	res := d.Execute(ctx, "get_ebay_item", map[string]any{"item_id": "v1|123|0"})
	require.False(t, res.IsError)
	assert.Equal(t, "tok", seen["access_token"])
	assert.JSONEq(t, `{"title":"Switch"}`, string(res.Payload.(json.RawMessage)))
}

func TestExecuteHandlerErrorAndPanic(t *testing.T) {
	extra := []schema.ToolDescriptor{desc("boom", "panics"), desc("fails", "errors")}
	handlers := map[string]schema.Handler{
		"boom": schema.HandlerFunc(func(context.Context, map[string]any) (any, error) {
			panic("kaboom")
		}),
		"fails": schema.HandlerFunc(func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("upstream 503")
		}),
	}
	d := NewDispatcher(testRegistry(t, extra...), handlers, nil, schema.ExecutorSettings{})

	p := errorOf(t, d.Execute(context.Background(), "boom", nil))
	assert.Equal(t, CodeExecutionFailed, p.Code)
	assert.Contains(t, p.Message, "kaboom")

	p = errorOf(t, d.Execute(context.Background(), "fails", nil))
	assert.Equal(t, CodeExecutionFailed, p.Code)
	assert.Equal(t, "upstream 503", p.Message)
}

func TestExecuteTimeout(t *testing.T) {
	handlers := map[string]schema.Handler{
		"slow": schema.HandlerFunc(func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-time.After(5 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}),
	}
	d := NewDispatcher(testRegistry(t, desc("slow", "sleeps")), handlers, nil,
		schema.ExecutorSettings{ToolTimeout: 20 * time.Millisecond})

	start := time.Now()
	p := errorOf(t, d.Execute(context.Background(), "slow", nil))
	assert.Equal(t, CodeTimeout, p.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecuteTruncatesLargeResults(t *testing.T) {
	handlers := map[string]schema.Handler{
		"big": schema.HandlerFunc(func(context.Context, map[string]any) (any, error) {
			return map[string]string{"blob": string(make([]byte, 500))}, nil
		}),
	}
	d := NewDispatcher(testRegistry(t, desc("big", "large")), handlers, nil,
		schema.ExecutorSettings{MaxResultChars: 100})

	res := d.Execute(context.Background(), "big", nil)
	s, ok := res.Payload.(string)
	require.True(t, ok)
	assert.Contains(t, s, "[truncated]")
	assert.Less(t, len(s), 130)
}

func TestExecuteAllPreservesOrderAndIDs(t *testing.T) {
	var extra []schema.ToolDescriptor
	handlers := map[string]schema.Handler{}
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("t%d", i)
		delay := time.Duration(8-i) * 5 * time.Millisecond
		extra = append(extra, desc(name, "sleeps"))
		handlers[name] = schema.HandlerFunc(func(context.Context, map[string]any) (any, error) {
			time.Sleep(delay)
			return name, nil
		})
	}
	d := NewDispatcher(testRegistry(t, extra...), handlers, nil, schema.ExecutorSettings{MaxParallel: 3})

	calls := make([]schema.ToolInvocation, 0, 9)
	for i := 0; i < 8; i++ {
		calls = append(calls, schema.ToolInvocation{ID: fmt.Sprintf("toolu_%d", i), Name: fmt.Sprintf("t%d", i)})
	}
	calls = append(calls, schema.ToolInvocation{ID: "toolu_x", Name: "missing"})

	results := d.ExecuteAll(context.Background(), calls)
	require.Len(t, results, len(calls))
	for i, c := range calls {
		assert.Equal(t, c.ID, results[i].InvocationID)
		assert.Equal(t, c.Name, results[i].Name)
	}
	assert.JSONEq(t, `"t3"`, string(results[3].Payload.(json.RawMessage)))
	assert.True(t, results[8].IsError)
}
