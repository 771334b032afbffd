package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flipagent/flipagent/internal/schema"
)

// Typed adapts a handler that takes a decoded argument struct.
// The input map is re-encoded and decoded into T using its json tags.
func Typed[T any](fn func(ctx context.Context, args T) (any, error)) schema.Handler {
	return schema.HandlerFunc(func(ctx context.Context, input map[string]any) (any, error) {
		var args T
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, args)
	})
}
