package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/watchlist"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()

	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		if cfg, err = config.Load(cfgPath); err != nil {
			def := config.DefaultConfig()
			cfg = &def
		}
	} else {
		def := config.DefaultConfig()
		cfg = &def
	}

	if cfg.Storage.CredentialKey == "" {
		key, err := newCredentialKey()
		if err != nil {
			return err
		}
		cfg.Storage.CredentialKey = key
		fmt.Println("✓ Generated credential encryption key")
	}
	if err := config.Save(cfg, cfgPath); err != nil {
		return err
	}
	fmt.Printf("✓ Config at %s\n", cfgPath)

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createWorkspaceTemplates(workspace)

	fmt.Printf("\n%s flipagent is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your LLM API key to %s\n", cfgPath)
	fmt.Println("  2. Connect a marketplace: flipagent credentials set ebay access_token=...")
	fmt.Printf("  3. Chat: flipagent agent -m \"Find me something to flip from Walmart to eBay\"\n")
	return nil
}

// newCredentialKey returns 32 random bytes, hex encoded.
func newCredentialKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate credential key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func createWorkspaceTemplates(workspace string) {
	templates := map[string]string{
		"AGENTS.md": `# Agent Instructions

- Confirm before creating listings or placing orders
- Show fees and net profit for every recommendation
- Prefer items with steady sales history over one-off spikes
`,
		"USER.md": `# Seller Profile

- Selling on: (eBay / Amazon / Walmart)
- Sourcing from: (Walmart / AliExpress / Amazon)
- Shipping from: (country, ZIP)
`,
		"STRATEGY.md": `# Strategy

- Minimum net profit per item: $10
- Minimum margin: 20%
- Avoid: (brands or categories with IP restrictions)
`,
		watchlist.FileName: `# WATCHLIST
<!-- One product per line. The gateway re-checks prices periodically. Tick "- [x]" to pause an item. -->
`,
	}

	for filename, content := range templates {
		p := filepath.Join(workspace, filename)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			_ = os.WriteFile(p, []byte(content), 0o644)
			fmt.Printf("  Created %s\n", filename)
		}
	}

	_ = os.MkdirAll(filepath.Join(workspace, "sessions"), 0o755)
}
