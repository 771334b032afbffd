package tools

import (
	"regexp"

	"github.com/flipagent/flipagent/internal/schema"
)

// DefaultMaxTools caps the tool set offered to the model in one turn.
const DefaultMaxTools = 50

type platformHint struct {
	platform schema.Platform
	re       *regexp.Regexp
}

type categoryHint struct {
	category schema.Category
	re       *regexp.Regexp
}

// platformHints is in the fixed order tools are appended in.
var platformHints = []platformHint{
	{schema.PlatformAmazon, regexp.MustCompile(`(?i)amazon|amzn|\basin\b|\bfba\b`)},
	{schema.PlatformEbay, regexp.MustCompile(`(?i)ebay`)},
	{schema.PlatformWalmart, regexp.MustCompile(`(?i)walmart`)},
	{schema.PlatformAliExpress, regexp.MustCompile(`(?i)aliexpress|ali express|dropship`)},
}

var categoryHints = []categoryHint{
	{schema.CategoryAnalytics, regexp.MustCompile(`(?i)profit|margin|\broi\b|revenue`)},
	{schema.CategoryPricing, regexp.MustCompile(`(?i)\bfees?\b|pricing|price|cost`)},
	{schema.CategoryScanning, regexp.MustCompile(`(?i)scan|search|\bfind|deal|arbitrage|opportunit`)},
	{schema.CategoryListings, regexp.MustCompile(`(?i)\blist|listing|\bsell`)},
	{schema.CategoryOrders, regexp.MustCompile(`(?i)order|fulfil|\bship|tracking`)},
	{schema.CategoryInventory, regexp.MustCompile(`(?i)stock|inventory`)},
	{schema.CategoryCredentials, regexp.MustCompile(`(?i)credential|api key|connect`)},
}

// Hints are the platforms and categories a message mentions.
type Hints struct {
	Platforms  []schema.Platform
	Categories []schema.Category
}

// Empty reports whether nothing was detected.
func (h Hints) Empty() bool {
	return len(h.Platforms) == 0 && len(h.Categories) == 0
}

// DetectHints scans free text for platform and category keywords.
func DetectHints(text string) Hints {
	var h Hints
	for _, ph := range platformHints {
		if ph.re.MatchString(text) {
			h.Platforms = append(h.Platforms, ph.platform)
		}
	}
	for _, ch := range categoryHints {
		if ch.re.MatchString(text) {
			h.Categories = append(h.Categories, ch.category)
		}
	}
	return h
}

// Select builds the per-turn tool set: every core tool, then the tools of
// each hinted platform, then the tools of each hinted category, deduplicated
// and capped at limit. limit <= 0 means DefaultMaxTools.
func Select(registry *Registry, text string, limit int) []schema.ToolDescriptor {
	if limit <= 0 {
		limit = DefaultMaxTools
	}
	set := newToolSet(limit)
	set.add(registry.Core()...)

	hints := DetectHints(text)
	for _, p := range hints.Platforms {
		set.add(registry.ByPlatform(p)...)
	}
	for _, c := range hints.Categories {
		set.add(registry.ByCategory(c)...)
	}
	return set.items
}

// toolSet is an insertion-ordered, deduplicated, capped collection.
type toolSet struct {
	limit int
	seen  map[string]struct{}
	items []schema.ToolDescriptor
}

func newToolSet(limit int) *toolSet {
	return &toolSet{limit: limit, seen: make(map[string]struct{})}
}

func (s *toolSet) add(ds ...schema.ToolDescriptor) {
	for _, d := range ds {
		if len(s.items) >= s.limit {
			return
		}
		if _, dup := s.seen[d.Name]; dup {
			continue
		}
		s.seen[d.Name] = struct{}{}
		s.items = append(s.items, d)
	}
}
