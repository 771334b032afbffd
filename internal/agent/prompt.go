package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flipagent/flipagent/internal/schema"
)

// PromptBuilder assembles the system prompt for each turn.
type PromptBuilder struct {
	workspace string
	creds     schema.CredentialManager
}

// bootstrapFiles lists workspace files appended to the system prompt.
var bootstrapFiles = []string{"AGENTS.md", "USER.md", "STRATEGY.md"}

// NewPromptBuilder creates a PromptBuilder. creds may be nil.
func NewPromptBuilder(workspace string, creds schema.CredentialManager) *PromptBuilder {
	return &PromptBuilder{workspace: workspace, creds: creds}
}

// Build returns identity + connected marketplaces + bootstrap files + session info.
func (pb *PromptBuilder) Build(userID, channel, chatID string) string {
	parts := []string{pb.identity()}

	if connected := pb.connected(userID); connected != "" {
		parts = append(parts, connected)
	}
	if bootstrap := pb.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}

	prompt := strings.Join(parts, "\n\n---\n\n")
	if channel != "" && chatID != "" {
		prompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}
	return prompt
}

func (pb *PromptBuilder) identity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	tz, _ := time.Now().Zone()
	if tz == "" {
		tz = "UTC"
	}

	return fmt.Sprintf(`# flipagent 🛒

You are flipagent, an assistant for e-commerce arbitrage across Amazon, eBay, Walmart and AliExpress.
You find price gaps between marketplaces, create and manage resale listings, fulfil orders by dropshipping and track profit.

## Current Time
%s (%s)

## Working with tools
Only a subset of tools is loaded for each message. If the tool you need is missing, call search_tools to find it by keyword, platform or category.
Marketplace tools need stored credentials. When a tool reports not_configured, ask the user for their keys and save them with setup_credentials.
Always run fee_calculator or calculate_profit before recommending a buy, and state the net profit after fees.
Never create listings or place orders without the user's explicit confirmation.

Be concise. Before calling tools, briefly tell the user what you're about to do (one short sentence in the user's language).`,
		now, tz,
	)
}

func (pb *PromptBuilder) connected(userID string) string {
	if pb.creds == nil {
		return ""
	}
	platforms, err := pb.creds.Platforms(userID)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(platforms))
	for _, p := range platforms {
		names = append(names, p.DisplayName())
	}
	if len(names) == 0 {
		return "## Connected Marketplaces\nNone yet."
	}
	return "## Connected Marketplaces\n" + strings.Join(names, ", ")
}

// loadBootstrapFiles reads the bootstrap markdown files from the workspace.
func (pb *PromptBuilder) loadBootstrapFiles() string {
	if pb.workspace == "" {
		return ""
	}
	var parts []string
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(expandHome(pb.workspace), name))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, string(data)))
	}
	return strings.Join(parts, "\n\n")
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
