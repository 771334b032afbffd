package channels

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config/channel"
)

const (
	webchatWriteTimeout = 10 * time.Second
	webchatMaxFrame     = 64 << 10
)

// WebChatFrame is the JSON frame exchanged over the socket.
// Client → server: {"type":"message","content":"…"}.
// Server → client: {"type":"ready"|"message"|"progress"|"error","content":"…"}.
type WebChatFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	ChatID  string `json:"chatId,omitempty"`
}

type webchatConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *webchatConn) write(f WebChatFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(webchatWriteTimeout))
	return c.ws.WriteJSON(f)
}

// WebChatChannel serves browser clients over a WebSocket mounted on the
// gateway router. Each connection is one chat. Its id is assigned by the
// server and doubles as the sender, so a client cannot claim another user's
// credentials.
type WebChatChannel struct {
	Base
	cfg      *channel.WebChatConfig
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*webchatConn
}

// NewWebChatChannel creates a WebChatChannel.
func NewWebChatChannel(cfg *channel.WebChatConfig, b bus.Bus) *WebChatChannel {
	w := &WebChatChannel{
		Base:  NewBase(bus.ChannelWebChat, b, nil),
		cfg:   cfg,
		conns: make(map[string]*webchatConn),
	}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     w.checkOrigin,
	}
	return w
}

func (w *WebChatChannel) Name() string { return string(bus.ChannelWebChat) }

// Mount registers GET /ws on r.
func (w *WebChatChannel) Mount(r chi.Router) {
	r.Get("/ws", w.serveWS)
}

// Start blocks until ctx is cancelled, then closes open sockets. The socket
// handler itself runs on the gateway HTTP server.
func (w *WebChatChannel) Start(ctx context.Context) error {
	<-ctx.Done()
	w.mu.Lock()
	for id, c := range w.conns {
		_ = c.ws.Close()
		delete(w.conns, id)
	}
	w.mu.Unlock()
	return ctx.Err()
}

// Send writes msg to the socket of its chat.
func (w *WebChatChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	w.mu.RLock()
	c, ok := w.conns[msg.ChatID()]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webchat: no connection for chat %s", msg.ChatID())
	}

	frameType := "message"
	if msg.IsProgress() {
		frameType = "progress"
	}
	return c.write(WebChatFrame{Type: frameType, Content: msg.Content()})
}

func (w *WebChatChannel) checkOrigin(r *http.Request) bool {
	if len(w.cfg.AllowOrigins) == 0 {
		return true
	}
	return slices.Contains(w.cfg.AllowOrigins, r.Header.Get("Origin"))
}

// authorized reports whether the request carries one of the configured tokens.
func (w *WebChatChannel) authorized(r *http.Request) bool {
	if len(w.cfg.Tokens) == 0 {
		return true
	}
	got := []byte(r.URL.Query().Get("token"))
	return slices.ContainsFunc(w.cfg.Tokens, func(tok string) bool {
		return tok != "" && subtle.ConstantTimeCompare([]byte(tok), got) == 1
	})
}

func (w *WebChatChannel) serveWS(rw http.ResponseWriter, r *http.Request) {
	if !w.authorized(r) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	clientID := uuid.NewString()

	ws, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		slog.Warn("webchat: upgrade failed", "err", err)
		return
	}
	ws.SetReadLimit(webchatMaxFrame)

	c := &webchatConn{ws: ws}
	w.mu.Lock()
	if prev, ok := w.conns[clientID]; ok {
		_ = prev.ws.Close()
	}
	w.conns[clientID] = c
	w.mu.Unlock()

	slog.Info("webchat: client connected", "client", clientID, "remote", r.RemoteAddr)
	defer w.drop(clientID, c)

	if err := c.write(WebChatFrame{Type: "ready", ChatID: clientID}); err != nil {
		return
	}

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("webchat: read failed", "client", clientID, "err", err)
			}
			return
		}

		var f WebChatFrame
		if err := json.Unmarshal(raw, &f); err != nil || f.Type != "message" {
			_ = c.write(WebChatFrame{Type: "error", Content: "expected {\"type\":\"message\",\"content\":\"...\"}"})
			continue
		}
		if content := strings.TrimSpace(f.Content); content != "" {
			w.HandleMessage(clientID, clientID, content, map[string]any{"remote_addr": r.RemoteAddr})
		}
	}
}

func (w *WebChatChannel) drop(clientID string, c *webchatConn) {
	w.mu.Lock()
	if w.conns[clientID] == c {
		delete(w.conns, clientID)
	}
	w.mu.Unlock()
	_ = c.ws.Close()
	slog.Info("webchat: client disconnected", "client", clientID)
}
