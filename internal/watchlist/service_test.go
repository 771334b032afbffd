package watchlist

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestActiveItems(t *testing.T) {
	content := `# WATCHLIST
<!-- one product per line -->

- [ ] Sony WH-1000XM5 headphones
- [x] LEGO 75313 (sold out)
- Nintendo Switch OLED
* Dyson V8 under $250
`
	got := ActiveItems(content)
	want := []string{"Sony WH-1000XM5 headphones", "Nintendo Switch OLED", "Dyson V8 under $250"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestActiveItems_Empty(t *testing.T) {
	if items := ActiveItems("# WATCHLIST\n\n<!-- nothing yet -->\n- [X] done\n"); len(items) != 0 {
		t.Errorf("expected no items, got %v", items)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	var prompts []string
	svc := NewService(dir, func(_ context.Context, prompt string) error {
		prompts = append(prompts, prompt)
		return nil
	}, 0)

	if svc.Check(context.Background()) {
		t.Fatal("missing file should not invoke the agent")
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("- AirPods Pro 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !svc.Check(context.Background()) {
		t.Fatal("expected the agent to run")
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], "- AirPods Pro 2") {
		t.Errorf("unexpected prompts %q", prompts)
	}
	if svc.interval != DefaultInterval {
		t.Errorf("expected default interval, got %v", svc.interval)
	}
}
