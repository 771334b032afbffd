package tools

import (
	"strings"

	"github.com/flipagent/flipagent/internal/schema"
)

// Registry holds the frozen tool catalog. It is built once at startup and
// shared read-only across sessions.
type Registry struct {
	order []string
	byKey map[string]schema.ToolDescriptor
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (schema.ToolDescriptor, bool) {
	d, ok := r.byKey[name]
	return d, ok
}

// Size returns the number of registered tools.
func (r *Registry) Size() int { return len(r.order) }

// All returns every descriptor in registration order.
func (r *Registry) All() []schema.ToolDescriptor {
	return r.filter(func(schema.ToolDescriptor) bool { return true })
}

// Core returns the descriptors flagged core, in registration order.
func (r *Registry) Core() []schema.ToolDescriptor {
	return r.filter(func(d schema.ToolDescriptor) bool { return d.Metadata.Core })
}

func (r *Registry) ByPlatform(p schema.Platform) []schema.ToolDescriptor {
	return r.filter(func(d schema.ToolDescriptor) bool { return d.Metadata.Platform == p })
}

func (r *Registry) ByCategory(c schema.Category) []schema.ToolDescriptor {
	return r.filter(func(d schema.ToolDescriptor) bool { return d.Metadata.Category == c })
}

// Search matches query case-insensitively against name and description and
// AND-combines the optional exact platform and category filters.
// Empty arguments do not filter.
func (r *Registry) Search(query string, platform schema.Platform, category schema.Category) []schema.ToolDescriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	return r.filter(func(d schema.ToolDescriptor) bool {
		if platform != "" && d.Metadata.Platform != platform {
			return false
		}
		if category != "" && d.Metadata.Category != category {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strings.ToLower(d.Description), q)
	})
}

func (r *Registry) filter(keep func(schema.ToolDescriptor) bool) []schema.ToolDescriptor {
	out := make([]schema.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		if d := r.byKey[name]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}
