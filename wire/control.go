package wire

// Payload encode/decode helpers for the control messages enumerated in the
// wire format table: Ack, AckExtra, Welcome, ClientConnected/
// ClientDisconnected, Heartbeat (both directions), and Disconnect/Reject
// (which share a reason-byte-plus-bytes shape). Connect carries only
// application-defined bytes and has no dedicated helper beyond
// Reader/Writer.

// EncodeAck builds the payload for the common-case ack: the sender's
// lastReceivedSeq together with the low 16 bits of its receive window.
func EncodeAck(lastReceivedSeq, ackBits uint16) []byte {
	w := NewWriter()
	w.WriteUint16(lastReceivedSeq)
	w.WriteUint16(ackBits)
	return w.Bytes()
}

// DecodeAck parses an Ack payload.
func DecodeAck(payload []byte) (lastReceivedSeq, ackBits uint16, err error) {
	r := NewReader(payload)
	if lastReceivedSeq, err = r.ReadUint16(); err != nil {
		return
	}
	ackBits, err = r.ReadUint16()
	return
}

// EncodeAckExtra builds the payload for an out-of-order ack, which adds the
// specific sequence id being acknowledged so the sender can clear that
// exact pending entry even though it isn't the newest one received.
func EncodeAckExtra(lastReceivedSeq, ackBits, ackedSeq uint16) []byte {
	w := NewWriter()
	w.WriteUint16(lastReceivedSeq)
	w.WriteUint16(ackBits)
	w.WriteUint16(ackedSeq)
	return w.Bytes()
}

// DecodeAckExtra parses an AckExtra payload.
func DecodeAckExtra(payload []byte) (lastReceivedSeq, ackBits, ackedSeq uint16, err error) {
	r := NewReader(payload)
	if lastReceivedSeq, err = r.ReadUint16(); err != nil {
		return
	}
	if ackBits, err = r.ReadUint16(); err != nil {
		return
	}
	ackedSeq, err = r.ReadUint16()
	return
}

// EncodeWelcome builds the Welcome payload (also used for the client's echo
// of the same shape back to the server).
func EncodeWelcome(clientID uint16) []byte {
	w := NewWriter()
	w.WriteUint16(clientID)
	return w.Bytes()
}

func DecodeWelcome(payload []byte) (clientID uint16, err error) {
	return NewReader(payload).ReadUint16()
}

// EncodeClientID and DecodeClientID build/parse the ClientConnected and
// ClientDisconnected payloads, which share Welcome's u16-clientId shape.
func EncodeClientID(id uint16) []byte { return EncodeWelcome(id) }

func DecodeClientID(payload []byte) (id uint16, err error) { return DecodeWelcome(payload) }

// EncodeHeartbeatClient builds the client->server heartbeat payload: the
// ping id the server should echo back, plus the client's last known RTT
// (purely informational; the client's own RTT estimate comes from timing
// the echo, not from anything the server returns).
func EncodeHeartbeatClient(pingID uint8, lastKnownRTT int16) []byte {
	w := NewWriter()
	w.WriteByte(pingID)
	w.WriteInt16(lastKnownRTT)
	return w.Bytes()
}

func DecodeHeartbeatClient(payload []byte) (pingID uint8, lastKnownRTT int16, err error) {
	r := NewReader(payload)
	if pingID, err = r.ReadByte(); err != nil {
		return
	}
	lastKnownRTT, err = r.ReadInt16()
	return
}

// EncodeHeartbeatServer builds the server->client heartbeat echo: just the
// ping id, so the client can match it against its outstanding ping.
func EncodeHeartbeatServer(pingID uint8) []byte {
	w := NewWriter()
	w.WriteByte(pingID)
	return w.Bytes()
}

func DecodeHeartbeatServer(payload []byte) (pingID uint8, err error) {
	return NewReader(payload).ReadByte()
}

// EncodeDisconnect builds a Disconnect payload: a reason code plus an
// optional application message.
func EncodeDisconnect(reason uint8, message []byte) []byte {
	w := NewWriter()
	w.WriteByte(reason)
	w.WriteBytes(message)
	return w.Bytes()
}

func DecodeDisconnect(payload []byte) (reason uint8, message []byte, err error) {
	r := NewReader(payload)
	if reason, err = r.ReadByte(); err != nil {
		return
	}
	message = payload[len(payload)-r.Remaining():]
	return
}

// EncodeReject builds a Reject payload: a reason code plus optional bytes.
func EncodeReject(reason uint8, message []byte) []byte {
	return EncodeDisconnect(reason, message)
}

func DecodeReject(payload []byte) (reason uint8, message []byte, err error) {
	return DecodeDisconnect(payload)
}
