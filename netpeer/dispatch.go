package netpeer

import "reliudp/wire"

// splitMessageID peels the u16 application message id off the front of a
// payload, as laid out in the wire format for both Reliable and
// Unreliable application datagrams.
func splitMessageID(payload []byte) (id uint16, body []byte, ok bool) {
	r := wire.NewReader(payload)
	id, err := r.ReadMessageID()
	if err != nil {
		return 0, nil, false
	}
	return id, payload[len(payload)-r.Remaining():], true
}
