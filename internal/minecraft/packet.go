package minecraft

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

// Packet ids used by the status exchange.
const (
	PacketHandshake      int32 = 0x00
	PacketStatusRequest  int32 = 0x00
	PacketPingRequest    int32 = 0x01
	PacketStatusResponse int32 = 0x00
	PacketPongResponse   int32 = 0x01

	// IntentStatus is the next-state value a handshake sends to ask for status.
	IntentStatus int32 = 1
)

// Endpoint identifies a game server and the protocol version to announce.
type Endpoint struct {
	Host            string
	Port            uint16
	ProtocolVersion int32
}

// Address returns host:port suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (protocol %d)", e.Address(), e.ProtocolVersion)
}

// Packet accumulates the payload of one outbound packet. The payload starts
// with the packet id; Bytes adds the length prefix.
type Packet struct {
	payload []byte
}

// NewPacket starts a packet with the given id.
func NewPacket(id int32) *Packet {
	return &Packet{payload: AppendVarInt(nil, id)}
}

func (p *Packet) WriteVarInt(v int32) *Packet {
	p.payload = AppendVarInt(p.payload, v)
	return p
}

func (p *Packet) WriteVarLong(v int64) *Packet {
	p.payload = AppendVarLong(p.payload, v)
	return p
}

// WriteString writes s as a VarInt byte length followed by its UTF-8 bytes.
func (p *Packet) WriteString(s string) *Packet {
	p.payload = AppendVarInt(p.payload, int32(len(s)))
	p.payload = append(p.payload, s...)
	return p
}

func (p *Packet) WriteUint16(v uint16) *Packet {
	p.payload = binary.BigEndian.AppendUint16(p.payload, v)
	return p
}

func (p *Packet) WriteInt32(v int32) *Packet {
	p.payload = binary.BigEndian.AppendUint32(p.payload, uint32(v))
	return p
}

func (p *Packet) WriteInt64(v int64) *Packet {
	p.payload = binary.BigEndian.AppendUint64(p.payload, uint64(v))
	return p
}

// Payload returns the packet id and fields without the length prefix.
func (p *Packet) Payload() []byte {
	return p.payload
}

// Bytes returns the framed packet: VarInt(len(payload)) followed by payload.
func (p *Packet) Bytes() []byte {
	n := int32(len(p.payload))
	out := make([]byte, 0, VarIntSize(n)+len(p.payload))
	out = AppendVarInt(out, n)
	return append(out, p.payload...)
}

// HandshakePacket builds the handshake that switches the connection into the
// status state.
func HandshakePacket(ep Endpoint) []byte {
	return NewPacket(PacketHandshake).
		WriteVarInt(ep.ProtocolVersion).
		WriteString(ep.Host).
		WriteUint16(ep.Port).
		WriteVarInt(IntentStatus).
		Bytes()
}

// StatusRequestPacket builds the empty status request.
func StatusRequestPacket() []byte {
	return NewPacket(PacketStatusRequest).Bytes()
}

// PingRequestPacket builds a ping carrying token, which the server echoes back
// in its pong.
func PingRequestPacket(token int64) []byte {
	return NewPacket(PacketPingRequest).WriteInt64(token).Bytes()
}

// Reader is a cursor over received bytes. Every read is bounds-checked and
// fails with ErrTruncated instead of running past the buffer.
type Reader struct {
	buf []byte
	off int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Rest returns the unread bytes and consumes them.
func (r *Reader) Rest() []byte {
	b := r.buf[r.off:]
	r.off = len(r.buf)
	return b
}

func (r *Reader) ReadVarInt() (int32, error) {
	v, n, err := ReadVarInt(r.buf[r.off:])
	if err != nil {
		return 0, err
	}
	r.off += n
	return v, nil
}

func (r *Reader) ReadVarLong() (int64, error) {
	v, n, err := ReadVarLong(r.buf[r.off:])
	if err != nil {
		return 0, err
	}
	r.off += n
	return v, nil
}

// ReadBytes consumes exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ReadString reads a VarInt length followed by that many bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Frame reads one length-prefixed packet and returns a Reader bounded to its
// payload. r advances past the whole packet.
func (r *Reader) Frame() (*Reader, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	body, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	return NewReader(body), nil
}
