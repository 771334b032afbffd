package tools

import (
	"context"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/schema"
)

type metaTools struct {
	registry  *Registry
	creds     schema.CredentialStore
	platforms OperationInvoker
}

type searchArgs struct {
	Query    string `json:"query"`
	Platform string `json:"platform"`
	Category string `json:"category"`
}

type toolSummary struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Platform    schema.Platform `json:"platform"`
	Category    schema.Category `json:"category"`
}

func (m metaTools) searchTools(_ context.Context, args searchArgs) (any, error) {
	found := m.registry.Search(args.Query, schema.Platform(args.Platform), schema.Category(args.Category))
	out := make([]toolSummary, 0, len(found))
	for _, d := range found {
		out = append(out, toolSummary{
			Name:        d.Name,
			Description: d.Description,
			Platform:    d.Metadata.Platform,
			Category:    d.Metadata.Category,
		})
	}
	return map[string]any{"count": len(out), "tools": out}, nil
}

type platformStatus struct {
	Platform   schema.Platform `json:"platform"`
	Name       string          `json:"name"`
	Tools      int             `json:"tools"`
	Connected  bool            `json:"connected"`
	Configured bool            `json:"endpointConfigured"`
}

func (m metaTools) listPlatforms(ctx context.Context, _ struct{}) (any, error) {
	userID := userFrom(ctx)
	out := make([]platformStatus, 0, len(schema.Marketplaces))
	for _, p := range schema.Marketplaces {
		st := platformStatus{Platform: p, Name: p.DisplayName(), Tools: len(m.registry.ByPlatform(p))}
		if m.creds != nil {
			_, st.Connected = m.creds.Lookup(userID, p)
		}
		if m.platforms != nil {
			st.Configured = m.platforms.Configured(p)
		}
		out = append(out, st)
	}
	return out, nil
}

func userFrom(ctx context.Context) string {
	if id := TurnCtx(ctx).UserID; id != "" {
		return id
	}
	return bus.SenderIDCLI
}
