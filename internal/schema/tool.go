// Package schema contains the contracts shared across flipagent packages.
// Concrete implementations live in their respective packages.
package schema

import (
	"context"
	"encoding/json"
)

// Platform identifies the marketplace a tool talks to.
type Platform string

const (
	PlatformAmazon     Platform = "amazon"
	PlatformEbay       Platform = "ebay"
	PlatformWalmart    Platform = "walmart"
	PlatformAliExpress Platform = "aliexpress"
	PlatformGeneral    Platform = "general"
)

// Marketplaces lists the concrete marketplaces in their canonical order.
var Marketplaces = []Platform{PlatformAmazon, PlatformEbay, PlatformWalmart, PlatformAliExpress}

// DisplayName returns the human-facing marketplace name ("eBay", "AliExpress", …).
func (p Platform) DisplayName() string {
	switch p {
	case PlatformAmazon:
		return "Amazon"
	case PlatformEbay:
		return "eBay"
	case PlatformWalmart:
		return "Walmart"
	case PlatformAliExpress:
		return "AliExpress"
	}
	return "General"
}

// ParsePlatform maps a user-supplied string to a Platform.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformAmazon, PlatformEbay, PlatformWalmart, PlatformAliExpress, PlatformGeneral:
		return Platform(s), true
	}
	return "", false
}

// Category groups tools by what they do.
type Category string

const (
	CategoryScanning    Category = "scanning"
	CategoryPricing     Category = "pricing"
	CategoryListings    Category = "listings"
	CategoryOrders      Category = "orders"
	CategoryAnalytics   Category = "analytics"
	CategoryInventory   Category = "inventory"
	CategoryCredentials Category = "credentials"
	CategoryMeta        Category = "meta"
	CategoryGeneral     Category = "general"
)

// ToolMetadata is the classification attached to every descriptor.
type ToolMetadata struct {
	Platform            Platform `json:"platform"`
	Category            Category `json:"category"`
	Core                bool     `json:"core"`
	RequiresCredentials bool     `json:"requiresCredentials"`
}

// ToolDescriptor describes one model-callable tool. Immutable after registration.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
	Metadata    ToolMetadata    `json:"-"`
}

// ToolInvocation is a model-issued request to run a tool.
type ToolInvocation struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the outcome of one invocation. Failures are carried in
// Payload with IsError set; they are never returned as Go errors.
type ToolResult struct {
	InvocationID string
	Name         string
	Payload      any
	IsError      bool
}

// ToolExecutor runs invocations on behalf of the agent loop.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input map[string]any) ToolResult
	ExecuteAll(ctx context.Context, calls []ToolInvocation) []ToolResult
}

// Handler runs a single tool. Returned errors become error-shaped results.
type Handler interface {
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, input map[string]any) (any, error)

func (f HandlerFunc) Execute(ctx context.Context, input map[string]any) (any, error) {
	return f(ctx, input)
}
