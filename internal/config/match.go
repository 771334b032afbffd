package config

import (
	"strings"

	"github.com/flipagent/flipagent/internal/config/provider"
	"github.com/flipagent/flipagent/internal/providers"
)

// MatchResult is the provider section chosen for a model and its registry name.
type MatchResult struct {
	Provider *provider.ProviderConfig
	Name     string
}

// MatchProvider picks the provider for model (default: agents.defaults.model).
// Only providers with an API key are considered, in this order:
//  1. the model's "name/" prefix ("deepseek/deepseek-chat" selects deepseek)
//  2. the first registry entry with a keyword contained in the model name
//  3. the first keyed gateway, then the first keyed provider of any kind
func (c *Config) MatchProvider(model string) MatchResult {
	if model == "" {
		model = c.Agents.Defaults.Model
	}
	name := normalizeModel(model)
	prefix, _, hasPrefix := strings.Cut(name, "/")

	keyed := make([]providers.ProviderSpec, 0, len(providers.Specs))
	for _, spec := range providers.Specs {
		if p := c.ProviderByName(spec.Name); p != nil && p.APIKey != "" {
			keyed = append(keyed, spec)
		}
	}
	pick := func(ok func(providers.ProviderSpec) bool) (MatchResult, bool) {
		for _, spec := range keyed {
			if ok(spec) {
				return MatchResult{Provider: c.ProviderByName(spec.Name), Name: spec.Name}, true
			}
		}
		return MatchResult{}, false
	}

	rules := []func(providers.ProviderSpec) bool{
		func(s providers.ProviderSpec) bool { return hasPrefix && prefix == s.Name },
		func(s providers.ProviderSpec) bool {
			for _, kw := range s.Keywords {
				if strings.Contains(name, normalizeModel(kw)) {
					return true
				}
			}
			return false
		},
		func(s providers.ProviderSpec) bool { return s.IsGateway },
		func(providers.ProviderSpec) bool { return true },
	}
	for _, rule := range rules {
		if m, ok := pick(rule); ok {
			return m
		}
	}
	return MatchResult{}
}

// normalizeModel lower-cases s and treats '-' and '_' alike.
func normalizeModel(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", "_")
}

// GetAPIBase is the configured apiBase for model's provider, else the
// registry default.
func (c *Config) GetAPIBase(model string) string {
	m := c.MatchProvider(model)
	if m.Provider != nil && m.Provider.APIBase != "" {
		return m.Provider.APIBase
	}
	if spec := providers.FindByName(m.Name); spec != nil {
		return spec.DefaultAPIBase
	}
	return ""
}

func (c *Config) GetAPIKey(model string) string {
	if p := c.MatchProvider(model).Provider; p != nil {
		return p.APIKey
	}
	return ""
}

// ProviderParams resolves everything providers.New needs for the default model.
func (c *Config) ProviderParams() providers.Params {
	model := c.Agents.Defaults.Model
	m := c.MatchProvider(model)
	params := providers.Params{
		APIBase:      c.GetAPIBase(model),
		DefaultModel: model,
		ProviderName: m.Name,
	}
	if m.Provider != nil {
		params.APIKey = m.Provider.APIKey
		params.ExtraHeaders = m.Provider.ExtraHeaders
	}
	return params
}
