package minecraft

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Players is the player count section of a status document.
type Players struct {
	Online int `json:"online"`
	Max    int `json:"max"`
}

// Version is the version section of a status document.
type Version struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// ServerStatus is the outcome of one status query. Error is set exactly when
// Online is false.
type ServerStatus struct {
	Online  bool    `json:"online"`
	Players Players `json:"players"`
	MOTD    string  `json:"motd"`
	Version Version `json:"version"`
	Favicon string  `json:"favicon,omitempty"`
	PingMS  uint64  `json:"ping"`
	Error   string  `json:"error,omitempty"`
}

// Offline builds the status reported for a failed query.
func Offline(err error) ServerStatus {
	return ServerStatus{Online: false, Error: err.Error()}
}

// ParseStatus interprets buf as a status response followed by a pong and
// computes the round trip from the echoed ping token and now.
func ParseStatus(buf []byte, now time.Time) (ServerStatus, error) {
	r := NewReader(buf)

	statusFrame, err := r.Frame()
	if err != nil {
		return ServerStatus{}, fmt.Errorf("reading status response: %w", err)
	}
	pongFrame, err := r.Frame()
	if err != nil {
		return ServerStatus{}, fmt.Errorf("reading pong response: %w", err)
	}

	pongID, err := pongFrame.ReadVarInt()
	if err != nil {
		return ServerStatus{}, fmt.Errorf("reading pong id: %w", err)
	}
	if pongID != PacketPongResponse {
		return ServerStatus{}, fmt.Errorf("%w: server responded to ping with packet 0x%02x instead of pong", ErrProtocolMismatch, pongID)
	}
	statusID, err := statusFrame.ReadVarInt()
	if err != nil {
		return ServerStatus{}, fmt.Errorf("reading status id: %w", err)
	}
	if statusID != PacketStatusResponse {
		return ServerStatus{}, fmt.Errorf("%w: server responded to status with packet 0x%02x instead of status", ErrProtocolMismatch, statusID)
	}

	// The declared JSON length is read but the packet boundary decides where
	// the document ends.
	if _, err := statusFrame.ReadVarInt(); err != nil {
		return ServerStatus{}, fmt.Errorf("reading status document length: %w", err)
	}
	st, err := decodeStatusDocument(statusFrame.Rest())
	if err != nil {
		return ServerStatus{}, err
	}

	echoed, err := pongFrame.ReadInt64()
	if err != nil {
		return ServerStatus{}, fmt.Errorf("reading pong token: %w", err)
	}
	if delta := now.UnixMilli() - echoed; delta > 0 {
		st.PingMS = uint64(delta)
	}

	st.Online = true
	st.Error = ""
	return st, nil
}

// decodeStatusDocument reads the status JSON leniently: only a document that
// is not a JSON object is rejected, and keys that are missing or of the wrong
// type leave their fields at zero values.
func decodeStatusDocument(doc []byte) (ServerStatus, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return ServerStatus{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	var st ServerStatus
	if raw, ok := fields["description"]; ok {
		st.MOTD = FlattenChat(raw)
	}
	if raw, ok := fields["players"]; ok {
		_ = json.Unmarshal(raw, &st.Players)
	}
	if raw, ok := fields["version"]; ok {
		_ = json.Unmarshal(raw, &st.Version)
	}
	if raw, ok := fields["favicon"]; ok {
		_ = json.Unmarshal(raw, &st.Favicon)
	}
	return st, nil
}

// Client runs status queries. The zero value uses the default timeout, tick
// and dialer.
type Client struct {
	Timeout time.Duration
	Tick    time.Duration
	Dialer  Dialer
	// Now is the clock used for the ping token. Defaults to time.Now.
	Now func() time.Time
}

// DefaultClient is used by QueryStatus.
var DefaultClient = &Client{}

// QueryStatus queries ep with DefaultClient.
func QueryStatus(ep Endpoint) ServerStatus {
	return DefaultClient.QueryStatus(ep)
}

// QueryStatus performs one handshake, status request and ping against ep.
// It never fails: problems are reported through Online and Error.
func (c *Client) QueryStatus(ep Endpoint) ServerStatus {
	st, _ := c.Query(ep)
	return st
}

// Query is QueryStatus that also returns the underlying error so callers can
// branch on it with errors.Is.
func (c *Client) Query(ep Endpoint) (ServerStatus, error) {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	token := now().UnixMilli()
	sess := NewQuerySession(ep,
		HandshakePacket(ep),
		StatusRequestPacket(),
		PingRequestPacket(token),
	)
	if c.Timeout > 0 {
		sess.Timeout = c.Timeout
	}
	if c.Tick > 0 {
		sess.Tick = c.Tick
	}
	if c.Dialer != nil {
		sess.Dialer = c.Dialer
	}

	sess.Run()
	if err := sess.Err(); err != nil {
		return Offline(err), err
	}
	st, err := ParseStatus(sess.Received(), now())
	if err != nil {
		return Offline(err), err
	}
	return st, nil
}

// ParseAddress splits "host[:port]" into an endpoint, defaulting the port to
// 25565.
func ParseAddress(addr string, protocol int32) (Endpoint, error) {
	host, port := addr, uint16(DefaultPort)
	if h, p, err := net.SplitHostPort(addr); err == nil {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return Endpoint{}, fmt.Errorf("invalid port %q", p)
		}
		host, port = h, uint16(n)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("missing host in %q", addr)
	}
	return Endpoint{Host: host, Port: port, ProtocolVersion: protocol}, nil
}

// DefaultPort is the standard game server port.
const DefaultPort = 25565
