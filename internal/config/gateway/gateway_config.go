package gateway

import "fmt"

// GatewayConfig holds gateway HTTP server settings. The server carries the
// webchat WebSocket, health checks and metrics.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// WatchIntervalMinutes is the WATCHLIST.md re-check period; 0 disables it.
	WatchIntervalMinutes int `json:"watchIntervalMinutes"`
	// WatchDeliverTo routes watchlist replies, as "channel:chatID".
	WatchDeliverTo string `json:"watchDeliverTo,omitempty"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "0.0.0.0", Port: 18790, WatchIntervalMinutes: 30}
}

// Addr returns host:port for net/http.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}
