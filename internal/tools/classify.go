package tools

import (
	"strings"

	"github.com/flipagent/flipagent/internal/schema"
)

type categoryRule struct {
	category schema.Category
	needles  []string
}

// categoryRules are evaluated top to bottom; the first hit wins.
var categoryRules = []categoryRule{
	{schema.CategoryCredentials, []string{"credential"}},
	{schema.CategoryMeta, []string{"search_tools", "list_platforms", "tool"}},
	{schema.CategoryAnalytics, []string{"report", "stats", "opportunit", "analytics"}},
	{schema.CategoryPricing, []string{"fee", "price_calc", "profit_calc", "calculate_profit", "pricing"}},
	{schema.CategoryInventory, []string{"inventory", "stock"}},
	{schema.CategoryOrders, []string{"order", "fulfil", "track"}},
	{schema.CategoryListings, []string{"listing"}},
	{schema.CategoryScanning, []string{"scan_", "search_", "compare_", "scan", "search", "compare", "get_"}},
}

// InferMetadata classifies a tool from its name, falling back to its
// description. The result is deterministic and always defined.
func InferMetadata(name, description string) (schema.Platform, schema.Category) {
	n := strings.ToLower(name)
	d := strings.ToLower(description)

	platform := inferPlatform(n)
	if platform == schema.PlatformGeneral {
		platform = inferPlatform(d)
	}

	category := inferCategory(n)
	if category == schema.CategoryGeneral {
		category = inferCategory(d)
	}
	return platform, category
}

func inferPlatform(s string) schema.Platform {
	for _, p := range schema.Marketplaces {
		if strings.Contains(s, string(p)) {
			return p
		}
	}
	if strings.Contains(s, "ali express") {
		return schema.PlatformAliExpress
	}
	return schema.PlatformGeneral
}

func inferCategory(s string) schema.Category {
	for _, rule := range categoryRules {
		for _, needle := range rule.needles {
			if strings.Contains(s, needle) {
				return rule.category
			}
		}
	}
	return schema.CategoryGeneral
}
