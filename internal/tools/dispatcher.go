package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/metrics"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/shared/llmutils"
)

// Error codes carried in error-shaped tool results.
const (
	CodeUnknownTool     = "unknown_tool"
	CodeUnavailable     = "unavailable"
	CodeInvalidInput    = "invalid_input"
	CodeNotConfigured   = "not_configured"
	CodeExecutionFailed = "execution_failed"
	CodeTimeout         = "timeout"
)

const (
	DefaultToolTimeout    = 30 * time.Second
	DefaultMaxParallel    = 5
	DefaultMaxResultChars = 16000
)

// ErrorPayload is the payload of every failed tool result.
type ErrorPayload struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorResult(name, code, message string) schema.ToolResult {
	return schema.ToolResult{
		Name:    name,
		Payload: ErrorPayload{Status: "error", Code: code, Message: message},
		IsError: true,
	}
}

// Dispatcher maps tool names to handlers and turns every outcome, including
// panics and deadlines, into a ToolResult value.
type Dispatcher struct {
	registry  *Registry
	handlers  map[string]schema.Handler
	creds     schema.CredentialStore
	validator *inputValidator
	settings  schema.ExecutorSettings
}

// NewDispatcher binds handlers to the tools of registry. creds may be nil,
// in which case every credential-gated tool reports not_configured.
func NewDispatcher(registry *Registry, handlers map[string]schema.Handler, creds schema.CredentialStore, settings schema.ExecutorSettings) *Dispatcher {
	if settings.ToolTimeout <= 0 {
		settings.ToolTimeout = DefaultToolTimeout
	}
	if settings.MaxParallel <= 0 {
		settings.MaxParallel = DefaultMaxParallel
	}
	if settings.MaxResultChars <= 0 {
		settings.MaxResultChars = DefaultMaxResultChars
	}
	return &Dispatcher{
		registry:  registry,
		handlers:  handlers,
		creds:     creds,
		validator: newInputValidator(),
		settings:  settings,
	}
}

// Execute runs one tool. It never panics and never returns an error; failures
// come back as error-shaped results.
func (d *Dispatcher) Execute(ctx context.Context, name string, input map[string]any) schema.ToolResult {
	start := time.Now()
	res := d.execute(ctx, name, input)
	res.Name = name

	status := "ok"
	if p, ok := res.Payload.(ErrorPayload); ok {
		status = p.Code
		slog.Warn("Tool failed", "name", name, "code", p.Code, "message", llmutils.Truncate(p.Message, 200))
	}
	metrics.ObserveTool(name, status, time.Since(start))
	return res
}

// ExecuteAll runs calls concurrently, bounded by MaxParallel, and returns
// results in call order with matching invocation ids.
func (d *Dispatcher) ExecuteAll(ctx context.Context, calls []schema.ToolInvocation) []schema.ToolResult {
	results := make([]schema.ToolResult, len(calls))

	run := func(i int) {
		call := calls[i]
		res := d.Execute(ctx, call.Name, call.Input)
		res.InvocationID = call.ID
		results[i] = res
	}

	if len(calls) == 1 {
		run(0)
		return results
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(d.settings.MaxParallel)
	for i := range calls {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) execute(ctx context.Context, name string, input map[string]any) schema.ToolResult {
	desc, ok := d.registry.Get(name)
	if !ok {
		return errorResult(name, CodeUnknownTool, fmt.Sprintf("Tool '%s' does not exist. Use search_tools to find available tools.", name))
	}
	handler, ok := d.handlers[name]
	if !ok || handler == nil {
		return errorResult(name, CodeUnavailable, fmt.Sprintf("Tool '%s' is not available in this deployment.", name))
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := d.validator.Validate(desc, input); err != nil {
		return errorResult(name, CodeInvalidInput, err.Error())
	}

	if desc.Metadata.RequiresCredentials {
		creds, ok := d.lookupCredentials(ctx, desc.Metadata.Platform)
		if !ok {
			return errorResult(name, CodeNotConfigured, fmt.Sprintf(
				"%s credentials not configured. Use setup_credentials to add them.",
				desc.Metadata.Platform.DisplayName()))
		}
		ctx = withCredentials(ctx, creds)
	}

	argsJSON, _ := json.Marshal(input)
	slog.Info("Tool call", "name", name, "args", llmutils.Truncate(string(argsJSON), 200))

	payload, err := d.invoke(ctx, handler, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errorResult(name, CodeTimeout, fmt.Sprintf("Tool '%s' did not finish within %s.", name, d.settings.ToolTimeout))
		}
		return errorResult(name, CodeExecutionFailed, err.Error())
	}
	return schema.ToolResult{Name: name, Payload: d.render(payload)}
}

func (d *Dispatcher) lookupCredentials(ctx context.Context, p schema.Platform) (schema.Credentials, bool) {
	if d.creds == nil {
		return nil, false
	}
	userID := TurnCtx(ctx).UserID
	if userID == "" {
		userID = bus.SenderIDCLI
	}
	creds, ok := d.creds.Lookup(userID, p)
	return creds, ok && len(creds) > 0
}

type outcome struct {
	payload any
	err     error
}

// invoke runs handler under the per-call deadline and recovers panics.
func (d *Dispatcher) invoke(ctx context.Context, handler schema.Handler, input map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, d.settings.ToolTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Tool panicked", "panic", r)
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		payload, err := handler.Execute(ctx, input)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// render encodes payload once and truncates oversized results.
func (d *Dispatcher) render(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	if len(raw) <= d.settings.MaxResultChars {
		return json.RawMessage(raw)
	}
	return llmutils.Truncate(string(raw), d.settings.MaxResultChars) + " [truncated]"
}

type credentialsKey struct{}

func withCredentials(ctx context.Context, creds schema.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials resolved by the dispatcher for the
// running tool, or nil for tools that do not require them.
func CredentialsFrom(ctx context.Context) schema.Credentials {
	creds, _ := ctx.Value(credentialsKey{}).(schema.Credentials)
	return creds
}
