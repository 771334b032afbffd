package llmutils

import (
	"testing"

	"github.com/flipagent/flipagent/internal/schema"
)

func TestTruncateKeepsRunes(t *testing.T) {
	got := Truncate("héllo", 2)
	if got != "h..." {
		t.Fatalf("Truncate = %q, want %q", got, "h...")
	}
	if Truncate("short", 10) != "short" {
		t.Fatal("short strings must be returned unchanged")
	}
}

func TestStripThink(t *testing.T) {
	got := StripThink("<think>plan</think> answer")
	if got != "answer" {
		t.Fatalf("StripThink = %q", got)
	}
}

func TestToolHint(t *testing.T) {
	got := ToolHint([]schema.ToolInvocation{
		{Name: "scan_ebay", Input: map[string]any{"query": "switch", "limit": 5.0}},
		{Name: "list_platforms"},
	})
	want := `scan_ebay("switch"), list_platforms`
	if got != want {
		t.Fatalf("ToolHint = %q, want %q", got, want)
	}
}
