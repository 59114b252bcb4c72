package netpeer

import (
	"errors"
	"fmt"
	"net"
	"time"

	"reliudp/netpeer/netmetrics"
	"reliudp/pkg/logger"
	"reliudp/transport"
	"reliudp/wire"
)

// ErrNotConnected is returned by Send/Disconnect when the Client has no
// active Connection to a server.
var ErrNotConnected = errors.New("netpeer: client is not connected")

// Client is the dialing-side Peer (C6): a single active Connection, the
// one that originates Connect and Heartbeat traffic.
type Client struct {
	mode       transport.Mode
	bufferSize int
	cfg        Config
	log        *logger.Logger
	handlers   *Handlers
	callbacks  Callbacks
	metrics    *netmetrics.Recorder

	socket transport.Socket
	recv   *receiver
	conn   *Connection
}

// SetMetrics attaches a Prometheus Recorder; the Connection created by the
// next Connect call reports through it. Passing nil (the default)
// disables instrumentation.
func (c *Client) SetMetrics(r *netmetrics.Recorder) { c.metrics = r }

// NewClient builds a Client bound to no socket yet; call Connect to dial.
func NewClient(mode transport.Mode, bufferSize int, cfg Config, handlers *Handlers, callbacks Callbacks) *Client {
	if handlers == nil {
		handlers = NewHandlers()
	}
	return &Client{
		mode:       mode,
		bufferSize: bufferSize,
		cfg:        cfg,
		handlers:   handlers,
		callbacks:  callbacks,
		log:        logger.Default().With("role", "client"),
	}
}

// Connect binds an ephemeral local socket and begins the handshake toward
// hostAddr. Connect returns once the Connect datagram is sent; completion
// is reported asynchronously via Callbacks.OnConnected/OnConnectionFailed
// from inside Tick.
func (c *Client) Connect(hostAddr *net.UDPAddr, payload []byte) error {
	sock, err := transport.Bind(c.mode, 0, c.bufferSize)
	if err != nil {
		return fmt.Errorf("netpeer: client bind: %w", err)
	}
	c.socket = sock
	c.recv = startReceiver(sock)
	now := time.Now()
	c.conn = newConnection(0, hostAddr, sock, c.cfg, c.log.With("server", hostAddr.String()), true, now)
	c.conn.metrics = c.metrics
	c.conn.lastHeartbeatSent = now
	c.conn.sendUnreliable(wire.HeaderConnect, payload)
	c.log.Infow("connecting", "server", hostAddr.String())
	return nil
}

// State returns the current Connection state, or StateNotConnected if
// Connect has never been called.
func (c *Client) State() State {
	if c.conn == nil {
		return StateNotConnected
	}
	return c.conn.State()
}

// Connection exposes the underlying Connection (nil before Connect).
func (c *Client) Connection() *Connection { return c.conn }

// Tick drains the transport, advances the handshake/heartbeat/retry
// state, and dispatches application messages. It returns the number of
// datagrams processed.
func (c *Client) Tick() (int, error) {
	if c.conn == nil {
		return 0, nil
	}
	now := time.Now()
	processed, err := c.recv.drain(func(data []byte, from *net.UDPAddr) {
		if !sameAddr(from, c.conn.RemoteAddr) {
			return
		}
		c.routeInbound(data, now)
	})
	if err != nil {
		c.onTransportError(err)
		return processed, err
	}

	switch {
	case c.conn.HasConnectAttemptTimedOut(now):
		c.conn.MarkNotConnected()
		c.callbacks.connectionFailed(ConnectionFailedEvent{Connection: c.conn, Reason: FailureTimedOut})
	case c.conn.HasTimedOut(now):
		c.conn.MarkNotConnected()
		c.metrics.IncDisconnects(ReasonTimedOut.String())
		c.callbacks.disconnected(DisconnectedEvent{Connection: c.conn, Reason: ReasonTimedOut})
	default:
		c.conn.tick(now)
	}
	return processed, nil
}

func sameAddr(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

func (c *Client) onTransportError(err error) {
	c.log.Errorw("transport error", "error", err)
	if c.conn != nil && c.conn.state != StateNotConnected {
		c.conn.MarkNotConnected()
		c.callbacks.disconnected(DisconnectedEvent{Connection: c.conn, Reason: ReasonTransportError})
	}
}

func (c *Client) routeInbound(data []byte, now time.Time) {
	header, seq, payload, err := wire.DecodeFrame(data)
	if err != nil {
		c.log.Warnw("dropping malformed datagram", "error", err)
		return
	}
	c.conn.Touch(now)

	switch header {
	case wire.HeaderWelcome:
		c.handleWelcome(seq, payload, now)
	case wire.HeaderReject:
		c.handleReject(payload)
	case wire.HeaderAck:
		lastRecv, bits, err := wire.DecodeAck(payload)
		if err != nil {
			c.log.Warnw("malformed Ack", "error", err)
			return
		}
		c.conn.HandleAck(lastRecv, bits, now)
	case wire.HeaderAckExtra:
		lastRecv, bits, acked, err := wire.DecodeAckExtra(payload)
		if err != nil {
			c.log.Warnw("malformed AckExtra", "error", err)
			return
		}
		c.conn.HandleAckExtra(lastRecv, bits, acked, now)
	case wire.HeaderHeartbeat:
		pingID, err := wire.DecodeHeartbeatServer(payload)
		if err != nil {
			c.log.Warnw("malformed Heartbeat echo", "error", err)
			return
		}
		c.conn.HandleHeartbeatEcho(pingID, now)
	case wire.HeaderDisconnect:
		reason, _, err := wire.DecodeDisconnect(payload)
		if err != nil {
			c.log.Warnw("malformed Disconnect", "error", err)
			return
		}
		c.conn.MarkNotConnected()
		c.metrics.IncDisconnects(decodeDisconnectReason(reason).String())
		c.callbacks.disconnected(DisconnectedEvent{Connection: c.conn, Reason: decodeDisconnectReason(reason)})
	case wire.HeaderUnreliable:
		c.dispatchApplication(payload)
	case wire.HeaderReliable:
		if c.conn.HandleInboundReliable(seq) {
			c.dispatchApplication(payload)
		}
	case wire.HeaderClientConnected:
		if c.conn.HandleInboundReliable(seq) {
			id, err := wire.DecodeClientID(payload)
			if err == nil {
				c.callbacks.clientConnected(ClientConnectedEvent{ID: id})
			}
		}
	case wire.HeaderClientDisconnected:
		if c.conn.HandleInboundReliable(seq) {
			id, err := wire.DecodeClientID(payload)
			if err == nil {
				c.callbacks.clientDisconnected(ClientDisconnectedEvent{ID: id})
			}
		}
	default:
		c.log.Warnw("dropping datagram the client shouldn't receive", "header", header.String())
	}
}

func (c *Client) dispatchApplication(payload []byte) {
	msgID, body, ok := splitMessageID(payload)
	if !ok {
		c.log.Warnw("dropping application datagram too short for a message id")
		return
	}
	c.handlers.dispatch(c.conn, msgID, body)
	c.callbacks.messageReceived(MessageReceivedEvent{Connection: c.conn, MessageID: msgID, Payload: body})
}

// handleWelcome completes the client half of the handshake: store the
// assigned id, echo Welcome back, and raise Connected exactly once.
func (c *Client) handleWelcome(seq uint16, payload []byte, now time.Time) {
	if !c.conn.HandleInboundReliable(seq) {
		return
	}
	if c.conn.state != StateConnecting {
		return
	}
	id, err := wire.DecodeWelcome(payload)
	if err != nil {
		c.log.Warnw("malformed Welcome", "error", err)
		return
	}
	c.conn.ID = id
	c.conn.MarkConnected(now)
	c.conn.SendReliable(wire.HeaderWelcome, wire.EncodeWelcome(id), c.cfg.MaxSendAttempts, now)
	c.metrics.IncConnects()
	c.callbacks.connected(ConnectedEvent{Connection: c.conn})
}

func (c *Client) handleReject(payload []byte) {
	if c.conn.state != StateConnecting {
		return
	}
	_, message, err := wire.DecodeReject(payload)
	if err != nil {
		c.log.Warnw("malformed Reject", "error", err)
		return
	}
	c.conn.MarkRejected()
	c.callbacks.connectionFailed(ConnectionFailedEvent{Connection: c.conn, Reason: FailureRejected, Payload: message})
}

// Send transmits an application message on the current Connection.
func (c *Client) Send(messageID uint16, body []byte, mode SendMode, maxAttempts int) error {
	if c.conn == nil || c.conn.state != StateConnected {
		return ErrNotConnected
	}
	w := wire.NewWriter()
	w.WriteMessageID(messageID)
	w.WriteBytes(body)
	if mode == Unreliable {
		c.conn.sendUnreliable(wire.HeaderUnreliable, w.Bytes())
		return nil
	}
	c.conn.SendReliable(wire.HeaderReliable, w.Bytes(), maxAttempts, time.Now())
	return nil
}

// Disconnect sends a best-effort Disconnect datagram and tears the local
// Connection down immediately; the server will also time it out
// eventually if the datagram is lost, but there's no reason to wait for
// that locally.
func (c *Client) Disconnect() error {
	if c.conn == nil || c.conn.state == StateNotConnected {
		return ErrNotConnected
	}
	c.conn.sendUnreliable(wire.HeaderDisconnect, wire.EncodeDisconnect(uint8(ReasonDisconnected), nil))
	c.conn.MarkNotConnected()
	c.metrics.IncDisconnects(ReasonDisconnected.String())
	if c.recv != nil {
		c.recv.close()
	}
	if c.socket != nil {
		return c.socket.Close()
	}
	return nil
}
