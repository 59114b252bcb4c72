package netpeer

// MessageHandler processes one application message body. conn identifies
// which Connection it arrived on; payload starts immediately after the
// u16 message id.
type MessageHandler func(conn *Connection, payload []byte)

// Handlers is an explicit message-id -> handler registry. The mechanism
// used to populate it (direct calls here, a generated init, a config
// file) is the embedding application's choice — this type itself is
// nothing more than a map, deliberately not a reflection-based scan.
type Handlers struct {
	byID map[uint16]MessageHandler
}

// NewHandlers returns an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{byID: make(map[uint16]MessageHandler)}
}

// Register binds handler to messageID, replacing any previous binding.
func (h *Handlers) Register(messageID uint16, handler MessageHandler) {
	h.byID[messageID] = handler
}

// dispatch looks up and invokes the handler for messageID, if any is
// registered. An unregistered message id is silently dropped — callers
// that want to know about it should register a handler, including for
// message id ranges they intend to ignore explicitly.
func (h *Handlers) dispatch(conn *Connection, messageID uint16, payload []byte) bool {
	handler, ok := h.byID[messageID]
	if !ok {
		return false
	}
	handler(conn, payload)
	return true
}
