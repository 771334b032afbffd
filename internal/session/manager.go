// Package session persists conversation history, one JSONL file per
// session key. The first line is a header; each further line is an Entry.
package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const headerType = "metadata"

type header struct {
	Type      string         `json:"_type"`
	Key       string         `json:"key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Manager caches sessions in memory and writes them under workspace/sessions.
type Manager struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Session
}

func NewManager(workspace string) (*Manager, error) {
	dir := filepath.Join(workspace, "sessions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &Manager{dir: dir, cache: map[string]*Session{}}, nil
}

// GetOrCreate returns the session for key, reading it from disk on first use.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache[key]; ok {
		return s
	}
	s, err := m.read(key)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Session file unreadable, starting fresh", "key", key, "err", err)
		}
		s = newSession(key)
	}
	m.cache[key] = s
	return s
}

// Save rewrites the session's file.
func (m *Manager) Save(s *Session) error {
	s.mu.Lock()
	h := header{Type: headerType, Key: s.Key, CreatedAt: s.CreatedAt.UTC(), UpdatedAt: time.Now().UTC(), Metadata: s.Metadata}
	entries := slices.Clone(s.entries)
	s.mu.Unlock()

	path := m.path(s.Key)
	tmp, err := os.CreateTemp(m.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.Key, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	err = enc.Encode(h)
	for i := 0; err == nil && i < len(entries); i++ {
		err = enc.Encode(entries[i])
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.Key, err)
	}

	m.mu.Lock()
	m.cache[s.Key] = s
	m.mu.Unlock()
	return nil
}

// Clear empties the session and persists the empty state.
func (m *Manager) Clear(key string) error {
	s := m.GetOrCreate(key)
	s.Clear()
	return m.Save(s)
}

// Invalidate drops key from the cache; the next GetOrCreate rereads disk.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
}

// Info describes one stored session.
type Info struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Path      string    `json:"path"`
}

// List reads every session header, most recently updated first.
func (m *Manager) List() []Info {
	paths, _ := filepath.Glob(filepath.Join(m.dir, "*.jsonl"))
	out := make([]Info, 0, len(paths))
	for _, p := range paths {
		h, err := readHeader(p)
		if err != nil {
			continue
		}
		out = append(out, Info{Key: h.Key, CreatedAt: h.CreatedAt, UpdatedAt: h.UpdatedAt, Path: p})
	}
	slices.SortStableFunc(out, func(a, b Info) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

func readHeader(path string) (header, error) {
	f, err := os.Open(path)
	if err != nil {
		return header{}, err
	}
	defer f.Close()
	var h header
	if err := json.NewDecoder(f).Decode(&h); err != nil {
		return header{}, err
	}
	if h.Type != headerType {
		return header{}, fmt.Errorf("%s: missing header", path)
	}
	return h, nil
}

// read loads key from disk. Lines that do not decode as entries are skipped.
func (m *Manager) read(key string) (*Session, error) {
	f, err := os.Open(m.path(key))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := newSession(key)
	dec := json.NewDecoder(f)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		var h header
		if json.Unmarshal(raw, &h) == nil && h.Type == headerType {
			s.CreatedAt = h.CreatedAt
			if h.Metadata != nil {
				s.Metadata = h.Metadata
			}
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil || e.Role == "" {
			slog.Warn("Skipping malformed session line", "key", key, "err", err)
			continue
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

var unsafeFileChars = strings.NewReplacer(
	":", "_", "<", "_", ">", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

func (m *Manager) path(key string) string {
	return filepath.Join(m.dir, strings.TrimSpace(unsafeFileChars.Replace(key))+".jsonl")
}
