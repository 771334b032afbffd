package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/providers"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show flipagent status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := resolvedConfigPath()

	fmt.Printf("%s flipagent Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	fmt.Printf("Config:    %s %s\n", cfgPath, yesNo(statErr == nil))

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	fmt.Printf("Workspace: %s %s\n", ws, yesNo(wsErr == nil))
	if wsErr == nil {
		if sessions, err := session.NewManager(ws); err == nil {
			list := sessions.List()
			fmt.Printf("Sessions:  %d", len(list))
			if len(list) > 0 {
				fmt.Printf(" (latest %s, %s)", list[0].Key, list[0].UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			fmt.Println()
		}
	}
	fmt.Printf("Database:  %s\n", cfg.DatabasePath())
	fmt.Printf("Cred key:  %s\n", yesNo(cfg.Storage.CredentialKey != ""))

	match := cfg.MatchProvider("")
	fmt.Printf("Model:     %s", cfg.Agents.Defaults.Model)
	if match.Name != "" {
		fmt.Printf(" (via %s)", match.Name)
	}
	fmt.Printf("\nLimits:    %d tools/turn, %d iterations, %ds tool timeout\n\n",
		cfg.Agents.Defaults.MaxTools, cfg.Agents.Defaults.MaxToolIter, cfg.Agents.Defaults.ToolTimeoutSeconds)

	fmt.Println("Providers:")
	for _, spec := range providers.Specs {
		p := cfg.ProviderByName(spec.Name)
		if p == nil {
			continue
		}
		switch {
		case p.APIKey != "" && p.APIBase != "":
			fmt.Printf("  %-20s ✓ %s\n", spec.Label(), p.APIBase)
		case p.APIKey != "":
			fmt.Printf("  %-20s ✓\n", spec.Label())
		default:
			fmt.Printf("  %-20s (not set)\n", spec.Label())
		}
	}

	fmt.Println("\nMarketplaces:")
	for _, pl := range schema.Marketplaces {
		pc := cfg.Platforms.ByPlatform(pl)
		if pc == nil || pc.BaseURL == "" {
			fmt.Printf("  %-20s (no endpoint)\n", pl.DisplayName())
			continue
		}
		fmt.Printf("  %-20s %s (%.1f req/s)\n", pl.DisplayName(), pc.BaseURL, pc.RequestsPerSecond)
	}
	return nil
}
