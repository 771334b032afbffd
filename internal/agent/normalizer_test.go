package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/schema"
)

func text(role schema.Role, s string) schema.Turn { return schema.NewTextTurn(role, s) }

func toolUseTurn(id, name string) schema.Turn {
	return schema.Turn{Role: schema.RoleAssistant, Content: []schema.ContentBlock{
		schema.ToolUseBlock(id, name, map[string]any{}),
	}}
}

func toolResultTurn(id, content string) schema.Turn {
	return schema.Turn{Role: schema.RoleUser, Content: []schema.ContentBlock{
		schema.ToolResultBlock(id, content, false),
	}}
}

func TestNormalizeLeadingAssistants(t *testing.T) {
	in := []schema.Turn{
		text(schema.RoleAssistant, "Earlier answer."),
		text(schema.RoleAssistant, "Follow-up."),
		text(schema.RoleUser, "What now?"),
	}
	out := Normalize(in)

	require.Len(t, out, 3)
	assert.Equal(t, text(schema.RoleUser, fillerUserText), out[0])
	assert.Equal(t, schema.RoleAssistant, out[1].Role)
	assert.Equal(t, "Earlier answer.\n\nFollow-up.", out[1].Text())
	assert.Equal(t, "What now?", out[2].Text())

	assert.Equal(t, "Earlier answer.", in[0].Text(), "input is left untouched")
	assert.Len(t, in[0].Content, 1)
}

func TestNormalizeKeepsStructuredTurns(t *testing.T) {
	in := []schema.Turn{
		text(schema.RoleUser, "fees on ebay for $100?"),
		toolUseTurn("toolu_1", "fee_calculator"),
		text(schema.RoleAssistant, "thinking"),
		toolResultTurn("toolu_1", `{"totalFees":13.55}`),
		text(schema.RoleUser, "thanks"),
	}
	out := Normalize(in)

	require.Len(t, out, 5)
	assert.Equal(t, schema.BlockToolUse, out[1].Content[0].Type)
	assert.Equal(t, schema.BlockToolResult, out[3].Content[0].Type)
}

func TestNormalizeMergesUserTexts(t *testing.T) {
	out := Normalize([]schema.Turn{
		text(schema.RoleUser, "scan ebay"),
		text(schema.RoleUser, "for lego"),
	})
	require.Len(t, out, 1)
	assert.Equal(t, "scan ebay\n\nfor lego", out[0].Text())
}

func TestNormalizeProperties(t *testing.T) {
	cases := [][]schema.Turn{
		{text(schema.RoleAssistant, "a")},
		{text(schema.RoleUser, "a"), text(schema.RoleUser, "b"), text(schema.RoleAssistant, "c"), text(schema.RoleAssistant, "d")},
		{toolUseTurn("x", "t"), toolResultTurn("x", "{}")},
	}
	for _, in := range cases {
		out := Normalize(in)
		require.NotEmpty(t, out)
		assert.Equal(t, schema.RoleUser, out[0].Role)
		for i := 1; i < len(out); i++ {
			if out[i].Role == out[i-1].Role {
				assert.False(t, out[i].IsPlainText() && out[i-1].IsPlainText(), "plain-text turns %d and %d share a role", i-1, i)
			}
		}
	}
	assert.Empty(t, Normalize(nil))
}

func TestTrimHistory(t *testing.T) {
	history := []schema.Turn{
		text(schema.RoleUser, "one"),
		text(schema.RoleAssistant, "two"),
		toolResultTurn("x", "{}"),
		text(schema.RoleAssistant, "three"),
		text(schema.RoleUser, "four"),
		text(schema.RoleAssistant, "five"),
	}

	out := TrimHistory(history, 4)
	require.Len(t, out, 2)
	assert.Equal(t, "four", out[0].Text())

	assert.Len(t, TrimHistory(history, 0), 6)
	assert.Empty(t, TrimHistory([]schema.Turn{text(schema.RoleAssistant, "x")}, 5))
}

func TestClassifyModelError(t *testing.T) {
	reply, kind := classifyModelError(assertErr("API error 400: prompt is too long: 210000 tokens > 200000 maximum"))
	assert.Equal(t, replyContextOverflow, reply)
	assert.Equal(t, "context_overflow", kind)

	reply, kind = classifyModelError(assertErr("API error 500: overloaded"))
	assert.Equal(t, replyModelFailure, reply)
	assert.Equal(t, "other", kind)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
