package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTool(t *testing.T) {
	before := testutil.ToFloat64(ToolCalls.WithLabelValues("fee_calculator", "ok"))
	ObserveTool("fee_calculator", "ok", 20*time.Millisecond)
	after := testutil.ToFloat64(ToolCalls.WithLabelValues("fee_calculator", "ok"))
	assert.Equal(t, before+1, after)
}

func TestObserveTokensSkipsZero(t *testing.T) {
	before := testutil.ToFloat64(LLMTokens.WithLabelValues("output"))
	ObserveTokens(10, 0)
	assert.Equal(t, before, testutil.ToFloat64(LLMTokens.WithLabelValues("output")))
}

func TestHandlerExposesFamilies(t *testing.T) {
	ObserveLoop(2, "final")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "flipagent_loop_outcomes_total"))
	assert.True(t, strings.Contains(body, "flipagent_tool_calls_total"))
}
