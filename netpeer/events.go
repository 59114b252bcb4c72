package netpeer

// Event payloads delivered synchronously from inside Peer.Tick. These are
// plain structs dispatched through explicit callback fields on Callbacks —
// deliberately not a general-purpose event bus or observer list, so a
// caller wiring up a Server/Client sees exactly which six things it can
// be told about.

type ConnectedEvent struct {
	Connection *Connection
}

type ConnectionFailedEvent struct {
	Connection *Connection
	Reason     FailureReason
	Payload    []byte
}

type DisconnectedEvent struct {
	Connection *Connection
	Reason     DisconnectReason
}

type ClientConnectedEvent struct {
	ID uint16
}

type ClientDisconnectedEvent struct {
	ID     uint16
	Reason DisconnectReason
}

type MessageReceivedEvent struct {
	Connection *Connection
	MessageID  uint16
	Payload    []byte
}

// Callbacks holds the application's hooks into a Server or Client. Any
// field left nil is simply not invoked — callers wire up only what they
// need.
type Callbacks struct {
	OnConnected          func(ConnectedEvent)
	OnConnectionFailed   func(ConnectionFailedEvent)
	OnDisconnected       func(DisconnectedEvent)
	OnClientConnected    func(ClientConnectedEvent)
	OnClientDisconnected func(ClientDisconnectedEvent)
	OnMessageReceived    func(MessageReceivedEvent)
}

func (cb Callbacks) connected(e ConnectedEvent) {
	if cb.OnConnected != nil {
		cb.OnConnected(e)
	}
}

func (cb Callbacks) connectionFailed(e ConnectionFailedEvent) {
	if cb.OnConnectionFailed != nil {
		cb.OnConnectionFailed(e)
	}
}

func (cb Callbacks) disconnected(e DisconnectedEvent) {
	if cb.OnDisconnected != nil {
		cb.OnDisconnected(e)
	}
}

func (cb Callbacks) clientConnected(e ClientConnectedEvent) {
	if cb.OnClientConnected != nil {
		cb.OnClientConnected(e)
	}
}

func (cb Callbacks) clientDisconnected(e ClientDisconnectedEvent) {
	if cb.OnClientDisconnected != nil {
		cb.OnClientDisconnected(e)
	}
}

func (cb Callbacks) messageReceived(e MessageReceivedEvent) {
	if cb.OnMessageReceived != nil {
		cb.OnMessageReceived(e)
	}
}
