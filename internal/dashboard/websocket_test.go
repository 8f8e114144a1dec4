package dashboard

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	hello := readMessage(t, conn)
	if hello.Type != MessageTypeHello || len(hello.ClientID) != 36 {
		t.Fatalf("first message = %+v, want hello with a client id", hello)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocketPing(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", msg.Type)
	}
}

func TestWebSocketSubscribe(t *testing.T) {
	src := newFakeSource()
	s := newTestServer(t, src, nil)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(Message{Type: MessageTypeSubscribe, Topics: []string{TopicLocal, TopicGame}}); err != nil {
		t.Fatal(err)
	}

	local := readMessage(t, conn)
	if local.Type != MessageTypeUpdate || local.Topic != TopicLocal {
		t.Fatalf("first update = %+v, want local", local)
	}
	data, _ := local.Data.(map[string]any)
	if data["self"] != true {
		t.Errorf("local data = %v", local.Data)
	}

	game := readMessage(t, conn)
	if game.Topic != TopicGame {
		t.Fatalf("second update topic = %q, want mc", game.Topic)
	}
	servers, _ := game.Data.([]any)
	if len(servers) != 2 {
		t.Errorf("len(mc data) = %d, want 2", len(servers))
	}
	if src.count("game") != 2 {
		t.Errorf("GameStatus calls = %d, want 2", src.count("game"))
	}
}

func TestWebSocketPush(t *testing.T) {
	cfg := testConfig()
	cfg.PushInterval = 50 * time.Millisecond
	s := NewServer(cfg, newFakeSource(), nil, nopLogger{})
	t.Cleanup(s.limiter.Stop)
	conn := dialWS(t, s)

	if err := conn.WriteJSON(Message{Type: MessageTypeSubscribe, Topics: []string{TopicAggregate}}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		msg := readMessage(t, conn)
		if msg.Topic != TopicAggregate {
			t.Fatalf("update %d topic = %q, want status", i, msg.Topic)
		}
	}

	if err := conn.WriteJSON(Message{Type: MessageTypeUnsubscribe, Topics: []string{TopicAggregate}}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	// Pushes already in flight may arrive before the pong.
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageTypePong {
			break
		}
	}
}

func TestWebSocketRejectsBadMessages(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)
	conn := dialWS(t, s)

	tests := []struct {
		name string
		send string
		want string
	}{
		{"not json", `{"type":`, ErrInvalidMessage.Error()},
		{"unknown type", `{"type":"resize"}`, ErrInvalidMessageType.Error()},
		{"unknown topic", `{"type":"subscribe","topics":["minecraft"]}`, ErrUnknownTopic.Error()},
		{"no topics", `{"type":"subscribe"}`, ErrInvalidMessage.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.send)); err != nil {
				t.Fatal(err)
			}
			msg := readMessage(t, conn)
			if msg.Type != MessageTypeError || !strings.Contains(msg.Error, tt.want) {
				t.Errorf("reply = %+v, want error containing %q", msg, tt.want)
			}
		})
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	s := newTestServer(t, newFakeSource(), nil)
	conn := dialWS(t, s)

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.hub.count() != 1 {
		t.Fatalf("hub.count() = %d, want 1", s.hub.count())
	}

	s.hub.stop()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("read after stop = %v, want going-away close", err)
	}
}
