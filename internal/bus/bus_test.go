package bus

import "testing"

func TestRoutingKey_RoundTrip(t *testing.T) {
	key := RoutingKey(ChannelTelegram, "42")
	if key != "telegram:42" {
		t.Fatalf("unexpected key %q", key)
	}
	ch, chat := ParseRoutingKey(key)
	if ch != ChannelTelegram || chat != "42" {
		t.Errorf("got (%q, %q)", ch, chat)
	}
}

func TestParseRoutingKey_NoChat(t *testing.T) {
	ch, chat := ParseRoutingKey("cli")
	if ch != ChannelCLI || chat != "" {
		t.Errorf("got (%q, %q)", ch, chat)
	}
}

func TestInboundMessage_UserID(t *testing.T) {
	msg := NewInboundMessage(ChannelTelegram, "123|alice", "9", "hi")
	if got := msg.UserID(); got != "telegram:123" {
		t.Errorf("UserID = %q, want telegram:123", got)
	}
	if got := msg.SessionKey(); got != "telegram:9" {
		t.Errorf("SessionKey = %q", got)
	}

	anon := NewInboundMessage(ChannelCLI, "", "direct", "hi")
	if got := anon.UserID(); got != SenderIDCLI {
		t.Errorf("UserID = %q, want %q", got, SenderIDCLI)
	}
}

func TestInboundMessage_UserIDNamespaced(t *testing.T) {
	// A remote sender named like the console owner must not become it.
	spoof := NewInboundMessage(ChannelWebChat, SenderIDCLI, "c1", "hi")
	if got := spoof.UserID(); got != "webchat:user" {
		t.Errorf("UserID = %q, want webchat:user", got)
	}
	if got := NewInboundMessage(ChannelSlack, "U1", "C1", "hi").UserID(); got != "slack:U1" {
		t.Errorf("UserID = %q, want slack:U1", got)
	}

	pinned := NewInboundMessage(ChannelTelegram, SenderIDCLI, "42", "scan")
	pinned.SetUserID("telegram:42")
	if got := pinned.UserID(); got != "telegram:42" {
		t.Errorf("UserID = %q, want telegram:42", got)
	}
}

func TestMessageBus_Delivers(t *testing.T) {
	b := NewMessageBus(2)
	b.PublishInbound(NewInboundMessage(ChannelCLI, "user", "direct", "ping"))
	if got := (<-b.InboundChan()).Content(); got != "ping" {
		t.Errorf("inbound content = %q", got)
	}

	b.PublishOutbound(NewProgressMessage("cli", "direct", "pong", map[string]any{"thread_ts": "1.2"}))
	if in, out := b.Pending(); in != 0 || out != 1 {
		t.Errorf("Pending = (%d, %d), want (0, 1)", in, out)
	}
	got := <-b.OutboundChan()
	if !got.IsProgress() || got.Content() != "pong" || got.Metadata()["thread_ts"] != "1.2" {
		t.Errorf("unexpected outbound %+v", got)
	}
	if NewOutboundMessage("cli", "direct", "done").IsProgress() {
		t.Error("plain reply reported as progress")
	}
}
