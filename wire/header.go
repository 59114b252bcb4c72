// Package wire implements the on-wire framing for reliudp datagrams: the
// one-byte header tag, the optional little-endian sequence id, and the
// scalar/varint encoding used to build and parse message bodies.
package wire

import "fmt"

// HeaderType is the first byte of every reliudp datagram. Its numeric value
// determines whether a 16-bit sequence id follows at bytes 1-2 (the
// "reliable range") — see IsReliable.
type HeaderType uint8

const (
	HeaderUnreliable HeaderType = iota
	HeaderAck
	HeaderAckExtra
	HeaderConnect
	HeaderReject
	HeaderHeartbeat
	HeaderDisconnect
	HeaderReliable
	HeaderWelcome
	HeaderClientConnected
	HeaderClientDisconnected

	headerCount
)

// reliableThreshold is the smallest header tag that carries a sequence id.
// Reliable, Welcome, ClientConnected and ClientDisconnected all sit at or
// above it; everything before is unreliable. Keeping membership a single
// comparison is the point of the enum ordering.
const reliableThreshold = HeaderReliable

// IsReliable reports whether datagrams carrying this header include a
// 16-bit little-endian sequence id at bytes 1-2.
func (h HeaderType) IsReliable() bool {
	return h >= reliableThreshold
}

// Valid reports whether h is a member of the closed header tag set.
func (h HeaderType) Valid() bool {
	return h < headerCount
}

func (h HeaderType) String() string {
	switch h {
	case HeaderUnreliable:
		return "Unreliable"
	case HeaderAck:
		return "Ack"
	case HeaderAckExtra:
		return "AckExtra"
	case HeaderConnect:
		return "Connect"
	case HeaderReject:
		return "Reject"
	case HeaderHeartbeat:
		return "Heartbeat"
	case HeaderDisconnect:
		return "Disconnect"
	case HeaderReliable:
		return "Reliable"
	case HeaderWelcome:
		return "Welcome"
	case HeaderClientConnected:
		return "ClientConnected"
	case HeaderClientDisconnected:
		return "ClientDisconnected"
	default:
		return fmt.Sprintf("HeaderType(%d)", uint8(h))
	}
}
