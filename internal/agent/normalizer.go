package agent

import (
	"strings"

	"github.com/flipagent/flipagent/internal/schema"
)

// fillerUserText opens a transcript that would otherwise start with an
// assistant turn.
const fillerUserText = "(continuing conversation)"

// Normalize rewrites turns into a strictly alternating transcript that
// starts with a user turn. Consecutive same-role turns merge only when both
// are plain text; structured turns are kept as they are. The input is not
// modified.
func Normalize(turns []schema.Turn) []schema.Turn {
	if len(turns) == 0 {
		return nil
	}

	out := make([]schema.Turn, 0, len(turns)+1)
	for _, t := range turns {
		t = t.Clone()
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if prev.Role == t.Role && prev.IsPlainText() && t.IsPlainText() {
				*prev = mergeText(*prev, t)
				continue
			}
		}
		out = append(out, t)
	}

	if out[0].Role != schema.RoleUser {
		out = append([]schema.Turn{schema.NewTextTurn(schema.RoleUser, fillerUserText)}, out...)
	}
	return out
}

func mergeText(a, b schema.Turn) schema.Turn {
	parts := make([]string, 0, 2)
	if s := a.Text(); s != "" {
		parts = append(parts, s)
	}
	if s := b.Text(); s != "" {
		parts = append(parts, s)
	}
	return schema.NewTextTurn(a.Role, strings.Join(parts, "\n\n"))
}

// TrimHistory keeps at most the newest maxTurns turns and then drops leading
// turns until the first one is a plain-text user turn, so a tool_result is
// never separated from its tool_use. maxTurns <= 0 keeps everything.
func TrimHistory(turns []schema.Turn, maxTurns int) []schema.Turn {
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	for len(turns) > 0 {
		if first := turns[0]; first.Role == schema.RoleUser && first.IsPlainText() {
			break
		}
		turns = turns[1:]
	}
	out := make([]schema.Turn, len(turns))
	copy(out, turns)
	return out
}
