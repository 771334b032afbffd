package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool catalog",
}

var (
	toolsPlatform string
	toolsCategory string
	toolsSelect   string
)

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsSearchCmd)

	for _, c := range []*cobra.Command{toolsListCmd, toolsSearchCmd} {
		c.Flags().StringVarP(&toolsPlatform, "platform", "p", "", "Filter by platform (amazon, ebay, walmart, aliexpress, general)")
		c.Flags().StringVar(&toolsCategory, "category", "", "Filter by category")
	}
	toolsListCmd.Flags().StringVar(&toolsSelect, "for", "", "Show the tools selected for this message instead")
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools",
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, err := tools.NewBuiltinRegistry()
		if err != nil {
			return err
		}
		if toolsSelect != "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printTools(tools.Select(registry, toolsSelect, cfg.Agents.Defaults.MaxTools), registry.Size())
			return nil
		}
		return searchTools(registry, "")
	},
}

var toolsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search tools by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		registry, err := tools.NewBuiltinRegistry()
		if err != nil {
			return err
		}
		return searchTools(registry, strings.Join(args, " "))
	},
}

func searchTools(registry *tools.Registry, query string) error {
	var platform schema.Platform
	if toolsPlatform != "" {
		p, ok := schema.ParsePlatform(strings.ToLower(toolsPlatform))
		if !ok {
			return fmt.Errorf("unknown platform %q", toolsPlatform)
		}
		platform = p
	}
	printTools(registry.Search(query, platform, schema.Category(strings.ToLower(toolsCategory))), registry.Size())
	return nil
}

func printTools(ds []schema.ToolDescriptor, total int) {
	if len(ds) == 0 {
		fmt.Println("No matching tools.")
		return
	}
	fmt.Printf("%-26s %-11s %-12s %-5s %s\n", "Name", "Platform", "Category", "Core", "Description")
	fmt.Println(strings.Repeat("-", 100))
	for _, d := range ds {
		core := ""
		if d.Metadata.Core {
			core = "✓"
		}
		fmt.Printf("%-26s %-11s %-12s %-5s %s\n", d.Name, d.Metadata.Platform, d.Metadata.Category, core, truncStr(d.Description, 60))
	}
	fmt.Printf("\n%d of %d tools\n", len(ds), total)
}

func truncStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
