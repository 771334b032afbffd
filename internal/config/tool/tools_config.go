package tool

// ToolsConfig groups tool-level settings.
type ToolsConfig struct {
	Web WebToolsConfig `json:"web"`
}

func DefaultToolConfigs() ToolsConfig {
	return ToolsConfig{Web: DefaultWebToolsConfig()}
}

// WebToolsConfig configures fetch_product_page.
type WebToolsConfig struct {
	FetchMaxChars int `json:"fetchMaxChars"`
}

func DefaultWebToolsConfig() WebToolsConfig {
	return WebToolsConfig{FetchMaxChars: 20000}
}
