package wire

import (
	"encoding/binary"
	"errors"
)

// Errors surfaced while framing/parsing a raw datagram. These map onto the
// MalformedDatagram error kind described for the reliability core: all are
// dropped by the caller and logged, never treated as fatal.
var (
	ErrUnknownHeader    = errors.New("wire: unknown header tag")
	ErrReliableTooShort = errors.New("wire: reliable datagram shorter than header+sequence")
	ErrEmptyDatagram    = errors.New("wire: empty datagram")
)

// EncodeFrame writes the header tag and, for reliable-range headers, the
// little-endian sequence id, ahead of payload. The returned slice is a new
// allocation suitable for handing straight to a transport Socket.
func EncodeFrame(header HeaderType, seq uint16, payload []byte) []byte {
	if header.IsReliable() {
		out := make([]byte, 3+len(payload))
		out[0] = byte(header)
		binary.LittleEndian.PutUint16(out[1:3], seq)
		copy(out[3:], payload)
		return out
	}
	out := make([]byte, 1+len(payload))
	out[0] = byte(header)
	copy(out[1:], payload)
	return out
}

// DecodeFrame parses the header tag and, if present, the sequence id from a
// raw datagram. The returned payload aliases data; callers that retain it
// past the lifetime of the receive buffer must copy it.
func DecodeFrame(data []byte) (header HeaderType, seq uint16, payload []byte, err error) {
	if len(data) == 0 {
		return 0, 0, nil, ErrEmptyDatagram
	}
	header = HeaderType(data[0])
	if !header.Valid() {
		return header, 0, nil, ErrUnknownHeader
	}
	if header.IsReliable() {
		if len(data) < 3 {
			return header, 0, nil, ErrReliableTooShort
		}
		seq = binary.LittleEndian.Uint16(data[1:3])
		return header, seq, data[3:], nil
	}
	return header, 0, data[1:], nil
}
