// Package watchlist re-checks the products listed in WATCHLIST.md on a fixed
// interval by running one agent turn over them.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	FileName        = "WATCHLIST.md"
	SessionKey      = "watchlist:direct"
	DefaultInterval = 30 * time.Minute
)

// OnCheckFunc runs the agent with the generated prompt.
type OnCheckFunc func(ctx context.Context, prompt string) error

// Service polls WATCHLIST.md.
type Service struct {
	workspace string
	onCheck   OnCheckFunc
	interval  time.Duration
}

// NewService creates a watchlist Service. interval defaults to 30 minutes if zero.
func NewService(workspace string, onCheck OnCheckFunc, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		workspace: workspace,
		onCheck:   onCheck,
		interval:  interval,
	}
}

// Start runs the check loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("watchlist: started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			slog.Info("watchlist: stopped")
			return ctx.Err()
		}
	}
}

// Check reads the watchlist once and runs the agent when it has active items.
// It reports whether the agent was invoked.
func (s *Service) Check(ctx context.Context) bool {
	data, err := os.ReadFile(filepath.Join(s.workspace, FileName))
	if err != nil {
		return false
	}

	items := ActiveItems(string(data))
	if len(items) == 0 {
		return false
	}

	slog.Info("watchlist: checking items", "count", len(items))
	if s.onCheck == nil {
		return false
	}
	if err := s.onCheck(ctx, Prompt(items)); err != nil {
		slog.Error("watchlist: agent error", "err", err)
	}
	return true
}

// ActiveItems returns the watchlist lines still to be tracked. Blank lines,
// headings, HTML comments and ticked "- [x]" items are skipped; list markers
// are stripped.
func ActiveItems(content string) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "",
			strings.HasPrefix(trimmed, "#"),
			strings.HasPrefix(trimmed, "<!--"),
			strings.HasPrefix(strings.ToLower(trimmed), "- [x]"):
			continue
		}
		trimmed = strings.TrimPrefix(trimmed, "- [ ]")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		if trimmed = strings.TrimSpace(trimmed); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// Prompt builds the agent message for a set of watched items.
func Prompt(items []string) string {
	var sb strings.Builder
	sb.WriteString("Re-check current prices on every connected marketplace for these watched products ")
	sb.WriteString("and report any arbitrage opportunity with its estimated profit:\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "- %s\n", it)
	}
	return strings.TrimRight(sb.String(), "\n")
}
