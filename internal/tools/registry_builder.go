package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flipagent/flipagent/internal/schema"
)

// ErrDuplicateTool is returned when a name is registered twice.
var ErrDuplicateTool = errors.New("duplicate tool name")

// RegistryBuilder accumulates descriptors during the construction phase.
// Call Build() to produce an immutable Registry ready for use.
type RegistryBuilder struct {
	order []string
	byKey map[string]schema.ToolDescriptor
}

// NewRegistryBuilder returns a fresh RegistryBuilder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{byKey: make(map[string]schema.ToolDescriptor)}
}

// Register adds one descriptor. Missing platform or category metadata is
// inferred from the name and description; core defaults to the credentials
// and meta categories.
func (b *RegistryBuilder) Register(d schema.ToolDescriptor) error {
	if d.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := b.byKey[d.Name]; exists {
		return fmt.Errorf("register %q: %w", d.Name, ErrDuplicateTool)
	}
	if len(d.InputSchema) == 0 {
		d.InputSchema = json.RawMessage(`{"type":"object","properties":{}}`)
	}

	platform, category := InferMetadata(d.Name, d.Description)
	if d.Metadata.Platform == "" {
		d.Metadata.Platform = platform
	}
	if d.Metadata.Category == "" {
		d.Metadata.Category = category
	}
	if d.Metadata.Category == schema.CategoryCredentials || d.Metadata.Category == schema.CategoryMeta {
		d.Metadata.Core = true
	}

	b.order = append(b.order, d.Name)
	b.byKey[d.Name] = d
	return nil
}

// RegisterAll registers descriptors in order and stops at the first error.
func (b *RegistryBuilder) RegisterAll(ds []schema.ToolDescriptor) error {
	for _, d := range ds {
		if err := b.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Build produces an immutable Registry from the accumulated descriptors.
func (b *RegistryBuilder) Build() *Registry {
	order := make([]string, len(b.order))
	copy(order, b.order)
	byKey := make(map[string]schema.ToolDescriptor, len(b.byKey))
	for k, v := range b.byKey {
		byKey[k] = v
	}
	return &Registry{order: order, byKey: byKey}
}
