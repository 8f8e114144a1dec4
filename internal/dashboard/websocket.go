package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Message types
const (
	MessageTypeHello       = "hello"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeUpdate      = "update"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Topics
const (
	TopicGame      = "mc"
	TopicMedia     = "jellyfin"
	TopicLocal     = "local"
	TopicAggregate = "status"
)

var validTopics = map[string]bool{
	TopicGame:      true,
	TopicMedia:     true,
	TopicLocal:     true,
	TopicAggregate: true,
}

// Message is one WebSocket frame in either direction.
type Message struct {
	Type     string   `json:"type"`
	ClientID string   `json:"clientId,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Topic    string   `json:"topic,omitempty"`
	Data     any      `json:"data,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Validate checks that the message is a known client request.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		if len(m.Topics) == 0 {
			return fmt.Errorf("%w: %s needs at least one topic", ErrInvalidMessage, m.Type)
		}
		for _, t := range m.Topics {
			if !validTopics[t] {
				return fmt.Errorf("%w %q", ErrUnknownTopic, t)
			}
		}
		return nil
	case MessageTypePing:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMessageType, m.Type)
	}
}

const writeWait = 5 * time.Second

type wsClient struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	topics map[string]bool
}

func (c *wsClient) send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for _, t := range []string{TopicGame, TopicMedia, TopicLocal, TopicAggregate} {
		if c.topics[t] {
			out = append(out, t)
		}
	}
	return out
}

// hub tracks WebSocket clients and pushes updates to them.
type hub struct {
	server   *Server
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*wsClient

	done     chan struct{}
	stopOnce sync.Once
}

func newHub(s *Server, interval time.Duration) *hub {
	return &hub{
		server:   s,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is read-only and served to any origin on the LAN.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*wsClient),
		done:    make(chan struct{}),
	}
}

// count returns the number of connected clients
func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := getClientIP(r)
	logger := h.server.logger

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Printf("websocket upgrade failed for %s: %v", ip, err)
		return // Upgrade already sent error response
	}

	client := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		topics: make(map[string]bool),
	}
	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	logger.Debugf("client %s connected from %s (clients=%d)", client.id, ip, h.count())

	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		conn.Close()
		logger.Debugf("client %s disconnected (clients=%d)", client.id, h.count())
	}()

	if err := client.send(Message{Type: MessageTypeHello, ClientID: client.id}); err != nil {
		return
	}

	stopPush := make(chan struct{})
	defer close(stopPush)
	go h.pushLoop(client, stopPush)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("unexpected WebSocket close for client %s: %v", client.id, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			client.send(Message{Type: MessageTypeError, Error: ErrInvalidMessage.Error()})
			continue
		}
		if err := msg.Validate(); err != nil {
			logger.Debugf("message validation failed for client %s: %v", client.id, err)
			client.send(Message{Type: MessageTypeError, Error: err.Error()})
			continue
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			client.mu.Lock()
			for _, t := range msg.Topics {
				client.topics[t] = true
			}
			client.mu.Unlock()
			// New subscribers get current data right away.
			for _, t := range msg.Topics {
				if err := client.send(h.update(t)); err != nil {
					return
				}
			}

		case MessageTypeUnsubscribe:
			client.mu.Lock()
			for _, t := range msg.Topics {
				delete(client.topics, t)
			}
			client.mu.Unlock()

		case MessageTypePing:
			if err := client.send(Message{Type: MessageTypePong}); err != nil {
				return
			}
		}
	}
}

// pushLoop sends every subscribed topic each interval until stop or hub
// shutdown.
func (h *hub) pushLoop(c *wsClient, stop <-chan struct{}) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, t := range c.subscribed() {
				if err := c.send(h.update(t)); err != nil {
					h.server.logger.Debugf("push to client %s failed: %v", c.id, err)
					return
				}
			}
		case <-stop:
			return
		case <-h.done:
			return
		}
	}
}

func (h *hub) update(topic string) Message {
	s := h.server
	msg := Message{Type: MessageTypeUpdate, Topic: topic}
	switch topic {
	case TopicGame:
		msg.Data = s.gameStatuses()
	case TopicMedia:
		msg.Data = s.mediaStatuses()
	case TopicLocal:
		msg.Data = renderNode(s.source.LocalStatus())
	case TopicAggregate:
		msg.Data = renderAggregate(s.source.GetAggregateReport())
	}
	return msg
}
