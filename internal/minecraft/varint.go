// Package minecraft implements the Server List Ping exchange used to read a
// game server's public status without logging in.
package minecraft

const (
	segmentBits = 0x7F
	continueBit = 0x80

	// MaxVarIntLen is the longest encoding of a 32-bit VarInt.
	MaxVarIntLen = 5
	// MaxVarLongLen is the longest encoding of a 64-bit VarLong.
	MaxVarLongLen = 10
)

// AppendVarInt appends the VarInt encoding of v to buf. Negative values are
// encoded through their unsigned bit pattern and always take five bytes.
func AppendVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for u&^segmentBits != 0 {
		buf = append(buf, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
	return append(buf, byte(u))
}

// AppendVarLong is AppendVarInt for 64-bit values.
func AppendVarLong(buf []byte, v int64) []byte {
	u := uint64(v)
	for u&^segmentBits != 0 {
		buf = append(buf, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
	return append(buf, byte(u))
}

// VarIntSize returns the number of bytes AppendVarInt writes for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u&^segmentBits != 0 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarInt decodes a VarInt from the front of buf and returns the value and
// the number of bytes consumed. Decoding stops once 32 bits have been filled
// even if the continuation bit is still set.
func ReadVarInt(buf []byte) (int32, int, error) {
	var value uint32
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, ErrTruncated
		}
		b := buf[i]
		value |= uint32(b&segmentBits) << shift
		if b&continueBit == 0 {
			return int32(value), i + 1, nil
		}
		shift += 7
		if shift >= 32 {
			return int32(value), i + 1, nil
		}
	}
}

// ReadVarLong is ReadVarInt for 64-bit values.
func ReadVarLong(buf []byte) (int64, int, error) {
	var value uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, 0, ErrTruncated
		}
		b := buf[i]
		value |= uint64(b&segmentBits) << shift
		if b&continueBit == 0 {
			return int64(value), i + 1, nil
		}
		shift += 7
		if shift >= 64 {
			return int64(value), i + 1, nil
		}
	}
}
