package tools

import (
	"context"
	"fmt"

	"github.com/flipagent/flipagent/internal/credentials"
	"github.com/flipagent/flipagent/internal/schema"
)

type credentialTools struct {
	creds schema.CredentialManager
}

type setupArgs struct {
	Platform    string            `json:"platform"`
	Credentials map[string]string `json:"credentials"`
}

func (c credentialTools) setup(ctx context.Context, args setupArgs) (any, error) {
	p := schema.Platform(args.Platform)
	if err := c.creds.Save(userFrom(ctx), p, schema.Credentials(args.Credentials)); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  "saved",
		"message": fmt.Sprintf("%s credentials saved.", p.DisplayName()),
	}, nil
}

func (c credentialTools) list(ctx context.Context, _ struct{}) (any, error) {
	userID := userFrom(ctx)
	platforms, err := c.creds.Platforms(userID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(platforms))
	for _, p := range platforms {
		creds, _ := c.creds.Lookup(userID, p)
		masked := make(map[string]string, len(creds))
		for k, v := range creds {
			masked[k] = credentials.Mask(v)
		}
		out = append(out, map[string]any{"platform": p, "credentials": masked})
	}
	return map[string]any{"count": len(out), "platforms": out}, nil
}

type removeArgs struct {
	Platform string `json:"platform"`
}

func (c credentialTools) remove(ctx context.Context, args removeArgs) (any, error) {
	p := schema.Platform(args.Platform)
	removed, err := c.creds.Delete(userFrom(ctx), p)
	if err != nil {
		return nil, err
	}
	if !removed {
		return map[string]any{"status": "not_found", "message": fmt.Sprintf("No %s credentials stored.", p.DisplayName())}, nil
	}
	return map[string]any{"status": "removed", "message": fmt.Sprintf("%s credentials removed.", p.DisplayName())}, nil
}
