package session

import (
	"sync"
	"time"

	"github.com/flipagent/flipagent/internal/schema"
)

// Entry is one persisted message. Only final text is stored; tool traffic
// lives and dies with its turn.
type Entry struct {
	Role      schema.Role `json:"role"`
	Content   string      `json:"content"`
	ToolsUsed []string    `json:"tools_used,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session is one conversation's history. Safe for concurrent use.
type Session struct {
	Key       string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any

	mu      sync.Mutex
	entries []Entry
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{Key: key, CreatedAt: now, UpdatedAt: now, Metadata: map[string]any{}}
}

func (s *Session) AddUser(content string) {
	s.append(Entry{Role: schema.RoleUser, Content: content})
}

// AddAssistant records a reply with the names of the tools that produced it.
func (s *Session) AddAssistant(content string, toolsUsed []string) {
	s.append(Entry{Role: schema.RoleAssistant, Content: content, ToolsUsed: toolsUsed})
}

func (s *Session) append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Timestamp = time.Now()
	s.UpdatedAt = e.Timestamp
	s.entries = append(s.entries, e)
}

// History converts the newest window entries into transcript turns; a
// window of zero or less returns all of them.
func (s *Session) History(window int) []schema.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.entries
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	turns := make([]schema.Turn, len(entries))
	for i, e := range entries {
		turns[i] = schema.NewTextTurn(e.Role, e.Content)
	}
	return turns
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.UpdatedAt = time.Now()
}
