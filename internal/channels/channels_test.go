package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/config/channel"
)

func TestBaseIsAllowed(t *testing.T) {
	open := NewBase(bus.ChannelTelegram, bus.NewMessageBus(1), nil)
	assert.True(t, open.IsAllowed("anyone"))

	restricted := NewBase(bus.ChannelTelegram, bus.NewMessageBus(1), []string{"42", "bob"})
	assert.True(t, restricted.IsAllowed("42"))
	assert.True(t, restricted.IsAllowed("42|alice"))
	assert.True(t, restricted.IsAllowed("7|bob"))
	assert.False(t, restricted.IsAllowed("7|carol"))
	assert.False(t, restricted.IsAllowed("7"))
}

func TestBaseHandleMessage(t *testing.T) {
	b := bus.NewMessageBus(2)
	base := NewBase(bus.ChannelSlack, b, []string{"U1"})

	assert.False(t, base.HandleMessage("U2", "C1", "hi", nil))
	inbound, _ := b.Pending()
	assert.Equal(t, 0, inbound)

	require.True(t, base.HandleMessage("U1", "C1", "scan ebay", map[string]any{"k": "v"}))
	msg := <-b.InboundChan()
	assert.Equal(t, "slack", msg.Channel())
	assert.Equal(t, "C1", msg.ChatID())
	assert.Equal(t, "scan ebay", msg.Content())
	assert.Equal(t, "v", msg.Metadata()["k"])
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("line one\nline two\nline three", 12)
	assert.Equal(t, []string{"line one", "line two", "line three"}, chunks)

	hard := splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, hard)
}

func TestMarkdownToTelegramHTML(t *testing.T) {
	got := markdownToTelegramHTML("## Deal\n**Profit**: $12 <net>\n- `SKU-1`")
	assert.Equal(t, "Deal\n<b>Profit</b>: $12 &lt;net&gt;\n• <code>SKU-1</code>", got)
}

func TestManagerEnabledChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.WebChat.Enabled = true

	m := NewManager(&cfg, bus.NewMessageBus(1), true)
	assert.Equal(t, []string{"cli", "webchat"}, m.EnabledChannels())
}

func TestManagerRoutesOutbound(t *testing.T) {
	cfg := config.DefaultConfig()
	b := bus.NewMessageBus(4)
	m := NewManager(&cfg, b, false)
	cli := &CLIChannel{Base: NewBase(bus.ChannelCLI, b, nil), in: strings.NewReader(""), replies: make(chan bus.OutboundMessage, 1)}
	m.Register(cli)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.dispatchOutbound(ctx)

	b.PublishOutbound(bus.NewOutboundMessage("nowhere", "x", "dropped"))
	b.PublishOutbound(bus.NewOutboundMessage("cli", bus.ChatIDDirect, "hello"))

	select {
	case msg := <-cli.replies:
		assert.Equal(t, "hello", msg.Content())
	case <-time.After(2 * time.Second):
		t.Fatal("outbound message was not routed")
	}
}

func TestRouterHealthAndMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	srv := httptest.NewServer(NewManager(&cfg, bus.NewMessageBus(1), false).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.True(t, health.OK)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, _ := io.ReadAll(mresp.Body)
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Contains(t, string(body), "flipagent_")

	wresp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	wresp.Body.Close()
	assert.Equal(t, http.StatusNotFound, wresp.StatusCode)
}

func dialWebChat(t *testing.T, srvURL, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) WebChatFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f WebChatFrame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebChatRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.WebChat.Enabled = true
	b := bus.NewMessageBus(4)
	m := NewManager(&cfg, b, false)
	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	conn := dialWebChat(t, srv.URL, "")
	ready := readFrame(t, conn)
	assert.Equal(t, "ready", ready.Type)
	require.NotEmpty(t, ready.ChatID)
	chatID := ready.ChatID

	require.NoError(t, conn.WriteJSON(WebChatFrame{Type: "message", Content: "compare prices for airpods"}))
	select {
	case in := <-b.InboundChan():
		assert.Equal(t, "webchat", in.Channel())
		assert.Equal(t, chatID, in.ChatID())
		assert.Equal(t, "webchat:"+chatID, in.UserID())
		assert.Equal(t, "compare prices for airpods", in.Content())
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not published")
	}

	ch, ok := m.Get("webchat")
	require.True(t, ok)

	progress := bus.NewProgressMessage("webchat", chatID, `scan_ebay("airpods")`, nil)
	require.NoError(t, ch.Send(context.Background(), progress))
	assert.Equal(t, WebChatFrame{Type: "progress", Content: `scan_ebay("airpods")`}, readFrame(t, conn))

	require.NoError(t, ch.Send(context.Background(), bus.NewOutboundMessage("webchat", chatID, "Best gap: $17")))
	assert.Equal(t, WebChatFrame{Type: "message", Content: "Best gap: $17"}, readFrame(t, conn))

	assert.Error(t, ch.Send(context.Background(), bus.NewOutboundMessage("webchat", "gone", "x")))
}

func TestWebChatRejectsBadFrames(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.WebChat.Enabled = true
	srv := httptest.NewServer(NewManager(&cfg, bus.NewMessageBus(1), false).Router())
	defer srv.Close()

	conn := dialWebChat(t, srv.URL, "")
	ready := readFrame(t, conn)
	assert.NotEmpty(t, ready.ChatID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, "error", readFrame(t, conn).Type)
}

func TestWebChatIgnoresClaimedIdentity(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.WebChat.Enabled = true
	b := bus.NewMessageBus(4)
	srv := httptest.NewServer(NewManager(&cfg, b, false).Router())
	defer srv.Close()

	conn := dialWebChat(t, srv.URL, "client_id="+bus.SenderIDCLI)
	ready := readFrame(t, conn)
	assert.NotEqual(t, bus.SenderIDCLI, ready.ChatID)

	require.NoError(t, conn.WriteJSON(WebChatFrame{Type: "message", Content: "place an aliexpress order"}))
	select {
	case in := <-b.InboundChan():
		assert.NotEqual(t, bus.SenderIDCLI, in.UserID())
		assert.Equal(t, "webchat:"+ready.ChatID, in.UserID())
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not published")
	}
}

func TestWebChatAccessControl(t *testing.T) {
	wc := NewWebChatChannel(&channel.WebChatConfig{Tokens: []string{"s3cret"}, AllowOrigins: []string{"https://shop.example"}}, bus.NewMessageBus(1))

	for _, target := range []string{"/ws", "/ws?token=nope", "/ws?client_id=s3cret"} {
		rec := httptest.NewRecorder()
		wc.serveWS(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
	}
	assert.True(t, wc.authorized(httptest.NewRequest(http.MethodGet, "/ws?token=s3cret", nil)))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, wc.checkOrigin(req))
	req.Header.Set("Origin", "https://shop.example")
	assert.True(t, wc.checkOrigin(req))
}

func TestCLIChannelRoundTrip(t *testing.T) {
	b := bus.NewMessageBus(4)
	cli := NewCLIChannel(b)
	cli.in = strings.NewReader("price check sku-9\nexit\n")
	cli.chatID = "bench"

	done := make(chan error, 1)
	go func() { done <- cli.Start(context.Background()) }()

	select {
	case msg := <-b.InboundChan():
		assert.Equal(t, "cli", msg.Channel())
		assert.Equal(t, "bench", msg.ChatID())
		assert.Equal(t, "price check sku-9", msg.Content())
	case <-time.After(2 * time.Second):
		t.Fatal("console line not published")
	}

	require.NoError(t, cli.Send(context.Background(), bus.NewProgressMessage("cli", "bench", "scan_ebay(\"sku-9\")", nil)))
	require.NoError(t, cli.Send(context.Background(), bus.NewOutboundMessage("cli", "bench", "No gap found.")))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not exit on 'exit'")
	}
}

func TestSlackAdmission(t *testing.T) {
	cfg := channel.DefaultSlackConfig()
	cfg.ReactEmoji = ""
	b := bus.NewMessageBus(4)
	s := NewSlackChannel(&cfg, b)
	s.setSelf("UBOT")

	assert.True(t, s.admit(slackMessage{kind: "message", user: "U1", channel: "D1", chanType: "im"}))
	assert.False(t, s.admit(slackMessage{kind: "message", user: "U1", channel: "C1", chanType: "channel", text: "deals?"}))
	assert.True(t, s.admit(slackMessage{kind: "app_mention", user: "U1", channel: "C1", text: "<@UBOT> deals?"}))

	cfg.DM.Policy = "allowlist"
	cfg.DM.AllowFrom = []string{"U2"}
	assert.False(t, s.admit(slackMessage{user: "U1", chanType: "im"}))
	assert.True(t, s.admit(slackMessage{user: "U2", chanType: "im"}))

	// The message copy of a mention is ignored; the app_mention is handled.
	s.receive(context.Background(), slackMessage{kind: "message", user: "U1", channel: "C1", text: "<@UBOT> scan lego", ts: "1.1"})
	s.receive(context.Background(), slackMessage{kind: "app_mention", user: "U1", channel: "C1", text: "<@UBOT> scan lego", ts: "1.1"})
	msg := <-b.InboundChan()
	assert.Equal(t, "scan lego", msg.Content())
	assert.Equal(t, map[string]any{"thread_ts": "1.1", "channel_type": ""}, msg.Metadata()["slack"])
	in, _ := b.Pending()
	assert.Zero(t, in)
}
