package channel

// WebChatConfig configures the browser chat channel served by the gateway.
type WebChatConfig struct {
	Enabled bool `json:"enabled"`
	// AllowOrigins lists permitted WebSocket Origin headers; empty allows any.
	AllowOrigins []string `json:"allowOrigins"`
	// Tokens lists access tokens a client must present as ?token=; empty
	// admits anonymous clients.
	Tokens []string `json:"tokens"`
}

func DefaultWebChatConfig() WebChatConfig {
	return WebChatConfig{AllowOrigins: []string{}, Tokens: []string{}}
}
