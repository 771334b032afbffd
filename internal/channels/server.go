package channels

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/metrics"
)

// Router builds the gateway HTTP handler: health, Prometheus metrics and,
// when the webchat channel is enabled, its WebSocket endpoint.
func (m *Manager) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", m.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	if ch, ok := m.Get(string(bus.ChannelWebChat)); ok {
		if wc, ok := ch.(*WebChatChannel); ok {
			wc.Mount(r)
		}
	}
	return r
}

type healthResponse struct {
	OK       bool     `json:"ok"`
	Channels []string `json:"channels"`
}

func (m *Manager) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Channels: m.EnabledChannels()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
