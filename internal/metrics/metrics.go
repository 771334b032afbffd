// Package metrics holds the Prometheus instruments shared by the agent loop,
// the tool dispatcher and the model providers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to flipagent so tests and embedders never collide with
// the process-wide default registry.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		ToolCalls, ToolDuration,
		LoopIterations, LoopOutcomes,
		ModelErrors, LLMTokens,
	)
}

// ToolCalls counts dispatched tool calls by outcome code ("ok" on success).
var ToolCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "flipagent_tool_calls_total",
		Help: "Tool calls by tool and status.",
	},
	[]string{"tool", "status"},
)

var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "flipagent_tool_duration_seconds",
		Help:    "Tool execution time in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// LoopIterations observes how many model rounds each handled message took.
var LoopIterations = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "flipagent_loop_iterations",
		Help:    "Model rounds per handled message.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
	},
)

var LoopOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "flipagent_loop_outcomes_total",
		Help: "Loop terminations by reason.",
	},
	[]string{"reason"}, // final | max_iterations | model_error | cancelled
)

var ModelErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "flipagent_model_errors_total",
		Help: "Failed model calls by kind.",
	},
	[]string{"kind"}, // timeout | context_overflow | other
)

var LLMTokens = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "flipagent_llm_tokens_total",
		Help: "Tokens reported by the model provider.",
	},
	[]string{"direction"}, // input | output
)

// ObserveTool records one dispatched call.
func ObserveTool(tool, status string, elapsed time.Duration) {
	ToolCalls.WithLabelValues(tool, status).Inc()
	ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveLoop records the end of one loop run.
func ObserveLoop(iterations int, reason string) {
	LoopIterations.Observe(float64(iterations))
	LoopOutcomes.WithLabelValues(reason).Inc()
}

// ObserveTokens adds provider-reported usage.
func ObserveTokens(input, output int) {
	if input > 0 {
		LLMTokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		LLMTokens.WithLabelValues("output").Add(float64(output))
	}
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
