package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/flipagent/flipagent/internal/metrics"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/shared/llmutils"
)

// DefaultMaxIterations caps model calls per message when settings leave it unset.
const DefaultMaxIterations = 10

// Reason explains why a loop ended.
type Reason string

const (
	ReasonFinal         Reason = "final"
	ReasonMaxIterations Reason = "max_iterations"
	ReasonModelError    Reason = "model_error"
	ReasonCancelled     Reason = "cancelled"
)

// Outcome is the result of one Run.
type Outcome struct {
	Text       string
	Iterations int
	Reason     Reason
	ToolsUsed  []string
	Transcript []schema.Turn
}

type loopState int

const (
	awaitingModel loopState = iota
	executingTools
	done
)

// Runner executes the model ↔ tool iteration loop for one message.
type Runner struct {
	provider schema.LLMProvider
	tools    schema.ToolExecutor
	settings schema.AgentSettings
}

func NewRunner(provider schema.LLMProvider, tools schema.ToolExecutor, settings schema.AgentSettings) *Runner {
	if settings.MaxIter <= 0 {
		settings.MaxIter = DefaultMaxIterations
	}
	return &Runner{provider: provider, tools: tools, settings: settings}
}

// Run drives the conversation until the model answers without tool calls,
// the iteration cap is reached, the model call fails or ctx is cancelled.
// transcript is copied; the returned Outcome carries the extended version.
func (r *Runner) Run(
	ctx context.Context,
	system string,
	transcript []schema.Turn,
	catalog []schema.ToolDescriptor,
	onProgress func(string),
) Outcome {
	out := Outcome{Transcript: append([]schema.Turn(nil), transcript...)}
	var (
		seenText []string
		resp     schema.ChatResponse
		state    = awaitingModel
	)

	for state != done {
		switch state {
		case awaitingModel:
			if ctx.Err() != nil {
				out.Reason = ReasonCancelled
				state = done
				continue
			}

			var err error
			resp, err = r.provider.Chat(ctx, schema.ChatRequest{
				System:      system,
				Turns:       out.Transcript,
				Tools:       catalog,
				Model:       r.settings.Model,
				MaxTokens:   r.settings.MaxTokens,
				Temperature: r.settings.Temperature,
			})
			out.Iterations++
			if err != nil {
				if ctx.Err() != nil {
					out.Reason = ReasonCancelled
					state = done
					continue
				}
				reply, kind := classifyModelError(err)
				slog.Error("LLM error", "err", err, "kind", kind, "iteration", out.Iterations)
				metrics.ModelErrors.WithLabelValues(kind).Inc()
				out.Text = reply
				out.Reason = ReasonModelError
				state = done
				continue
			}
			metrics.ObserveTokens(resp.Usage.InputTokens, resp.Usage.OutputTokens)

			text := llmutils.StripThink(joinText(resp.Content))
			if !resp.HasToolUse() {
				out.Text = text
				out.Reason = ReasonFinal
				state = done
				continue
			}
			if text != "" {
				seenText = append(seenText, text)
			}
			state = executingTools

		case executingTools:
			assistant := assignToolIDs(resp.Content)
			calls := assistant.ToolUses()

			if onProgress != nil {
				if clean := llmutils.StripThink(assistant.Text()); clean != "" {
					onProgress(clean)
				}
				onProgress(llmutils.ToolHint(calls))
			}

			results := r.tools.ExecuteAll(ctx, calls)
			for _, c := range calls {
				out.ToolsUsed = append(out.ToolsUsed, c.Name)
			}
			out.Transcript = append(out.Transcript, assistant, resultTurn(results))

			if out.Iterations >= r.settings.MaxIter {
				out.Text = capNotice(seenText, r.settings.MaxIter)
				out.Reason = ReasonMaxIterations
				slog.Warn("Tool iteration cap reached", "cap", r.settings.MaxIter)
				state = done
				continue
			}
			state = awaitingModel
		}
	}

	metrics.ObserveLoop(out.Iterations, string(out.Reason))
	return out
}

// assignToolIDs copies blocks into an assistant turn and gives every
// tool_use block without an id a generated one.
func assignToolIDs(blocks []schema.ContentBlock) schema.Turn {
	turn := schema.Turn{Role: schema.RoleAssistant, Content: make([]schema.ContentBlock, len(blocks))}
	copy(turn.Content, blocks)
	for i, b := range turn.Content {
		if b.Type == schema.BlockToolUse && b.ID == "" {
			turn.Content[i].ID = "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
	}
	return turn
}

// resultTurn renders results as one user turn of tool_result blocks, in order.
func resultTurn(results []schema.ToolResult) schema.Turn {
	blocks := make([]schema.ContentBlock, 0, len(results))
	for _, res := range results {
		blocks = append(blocks, schema.ToolResultBlock(res.InvocationID, renderPayload(res.Payload), res.IsError))
	}
	return schema.Turn{Role: schema.RoleUser, Content: blocks}
}

func renderPayload(payload any) string {
	if raw, ok := payload.(json.RawMessage); ok {
		return string(raw)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

func joinText(blocks []schema.ContentBlock) string {
	return schema.Turn{Content: blocks}.Text()
}

func capNotice(seen []string, limit int) string {
	notice := fmt.Sprintf("⚠️ Reached the maximum number of tool iterations (%d). Ask me to continue if you need more.", limit)
	if len(seen) == 0 {
		return notice
	}
	return strings.Join(seen, "\n") + "\n\n" + notice
}
