package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flipagent/flipagent/internal/schema"
)

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	s := m.GetOrCreate("telegram:42")
	s.AddUser("find deals on lego")
	s.AddAssistant("Found 3 opportunities.", []string{"compare_prices"})
	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sessions", "telegram_42.jsonl")); err != nil {
		t.Fatalf("session file missing: %v", err)
	}

	fresh, _ := NewManager(dir)
	got := fresh.GetOrCreate("telegram:42").History(0)
	if len(got) != 2 {
		t.Fatalf("History len = %d, want 2", len(got))
	}
	if got[0].Role != schema.RoleUser || got[0].Text() != "find deals on lego" {
		t.Fatalf("unexpected first turn: %+v", got[0])
	}
	if got[1].Role != schema.RoleAssistant || !got[1].IsPlainText() {
		t.Fatalf("unexpected second turn: %+v", got[1])
	}
}

func TestHistoryWindow(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	s := m.GetOrCreate("cli:direct")
	for i := 0; i < 5; i++ {
		s.AddUser("q")
		s.AddAssistant("a", nil)
	}
	if got := len(s.History(4)); got != 4 {
		t.Fatalf("History(4) len = %d", got)
	}
}

func TestClearAndList(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	s := m.GetOrCreate("slack:C1")
	s.AddUser("hello")
	if err := m.Save(s); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear("slack:C1"); err != nil {
		t.Fatal(err)
	}
	if n := m.GetOrCreate("slack:C1").Len(); n != 0 {
		t.Fatalf("Len after Clear = %d", n)
	}

	list := m.List()
	if len(list) != 1 || list[0].Key != "slack:C1" {
		t.Fatalf("List = %+v", list)
	}
}

func TestReloadSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	m, _ := NewManager(dir)
	s := m.GetOrCreate("webchat:abc")
	s.AddUser("is this a good flip?")
	if err := m.Save(s); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "sessions", "webchat_abc.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"content":"no role"}` + "\n")
	f.Close()

	fresh, _ := NewManager(dir)
	if n := fresh.GetOrCreate("webchat:abc").Len(); n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
}
