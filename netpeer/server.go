package netpeer

import (
	"fmt"
	"net"
	"sort"
	"time"

	"go.uber.org/multierr"

	"reliudp/netpeer/netmetrics"
	"reliudp/pkg/logger"
	"reliudp/transport"
	"reliudp/wire"
)

// Server is the listening-side Peer (C6): it owns one Connection per
// remote address, allocates client ids from a free list, and fans
// ClientConnected/ClientDisconnected out to the rest of the table.
type Server struct {
	mode       transport.Mode
	bufferSize int
	cfg        Config
	log        *logger.Logger
	handlers   *Handlers
	callbacks  Callbacks
	metrics    *netmetrics.Recorder

	socket     transport.Socket
	recv       *receiver
	maxClients int

	byAddr map[string]*Connection
	byID   map[uint16]*Connection

	freeIDs     []uint16
	nextFreshID uint16

	running bool
}

// NewServer builds a Server bound to no socket yet; call Start to bind
// and begin accepting connections.
func NewServer(mode transport.Mode, bufferSize int, cfg Config, handlers *Handlers, callbacks Callbacks) *Server {
	if handlers == nil {
		handlers = NewHandlers()
	}
	return &Server{
		mode:       mode,
		bufferSize: bufferSize,
		cfg:        cfg,
		handlers:   handlers,
		callbacks:  callbacks,
		log:        logger.Default().With("role", "server"),
	}
}

// Start binds the listening socket and resets connection/id-pool state
// for a fresh run of up to maxClients simultaneous connections.
func (s *Server) Start(port, maxClients int) error {
	sock, err := transport.Bind(s.mode, port, s.bufferSize)
	if err != nil {
		return fmt.Errorf("netpeer: server bind: %w", err)
	}
	s.socket = sock
	s.recv = startReceiver(sock)
	s.maxClients = maxClients
	s.byAddr = make(map[string]*Connection)
	s.byID = make(map[uint16]*Connection)
	s.freeIDs = nil
	s.nextFreshID = 1
	s.running = true
	s.log.Infow("server started", "addr", sock.LocalAddr(), "maxClients", maxClients)
	return nil
}

// Stop disconnects every client and closes the listening socket, returning
// an aggregate of whatever went wrong along the way.
func (s *Server) Stop() error {
	if !s.running {
		return nil
	}
	now := time.Now()
	var errs error
	for _, conn := range s.byAddr {
		s.teardownConnection(conn, ReasonDisconnected, now)
	}
	s.recv.close()
	if err := s.socket.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	s.running = false
	return errs
}

// ConnectionCount reports how many clients currently hold a Connection
// record, regardless of handshake state.
func (s *Server) ConnectionCount() int { return len(s.byAddr) }

// SetMetrics attaches a Prometheus Recorder; every Connection created
// after this call reports through it. Passing nil (the default) disables
// instrumentation with no runtime cost beyond a nil check per event.
func (s *Server) SetMetrics(r *netmetrics.Recorder) { s.metrics = r }

// Tick drains the transport, routes each datagram to its Connection (or
// creates one for an unknown Connect), retries due pending sends, and
// tears down timed-out connections. It returns the number of datagrams
// processed.
func (s *Server) Tick() (int, error) {
	now := time.Now()
	processed, err := s.recv.drain(func(data []byte, from *net.UDPAddr) {
		s.routeInbound(data, from, now)
	})
	if err != nil {
		s.onTransportError(err, now)
		return processed, err
	}

	for _, conn := range s.byID {
		conn.tick(now)
	}
	for addr, conn := range s.byAddr {
		if conn.HasTimedOut(now) {
			delete(s.byAddr, addr)
			s.teardownConnection(conn, ReasonTimedOut, now)
		}
	}
	return processed, nil
}

func (s *Server) onTransportError(err error, now time.Time) {
	s.log.Errorw("transport error, tearing down server", "error", err)
	for _, conn := range s.byAddr {
		s.metrics.IncDisconnects(ReasonTransportError.String())
		s.callbacks.disconnected(DisconnectedEvent{Connection: conn, Reason: ReasonTransportError})
	}
	s.metrics.SetConnections(0)
	s.byAddr = make(map[string]*Connection)
	s.byID = make(map[uint16]*Connection)
	s.running = false
}

func (s *Server) routeInbound(data []byte, addr *net.UDPAddr, now time.Time) {
	header, seq, payload, err := wire.DecodeFrame(data)
	if err != nil {
		s.log.Warnw("dropping malformed datagram", "addr", addr, "error", err)
		return
	}

	key := addr.String()
	conn, known := s.byAddr[key]

	if header == wire.HeaderConnect {
		s.handleConnect(conn, known, addr, now)
		return
	}

	if !known {
		s.log.Debugw("dropping datagram from unknown address", "addr", addr, "header", header.String())
		return
	}
	conn.Touch(now)

	switch header {
	case wire.HeaderAck:
		lastRecv, bits, err := wire.DecodeAck(payload)
		if err != nil {
			s.log.Warnw("malformed Ack", "addr", addr, "error", err)
			return
		}
		conn.HandleAck(lastRecv, bits, now)
	case wire.HeaderAckExtra:
		lastRecv, bits, acked, err := wire.DecodeAckExtra(payload)
		if err != nil {
			s.log.Warnw("malformed AckExtra", "addr", addr, "error", err)
			return
		}
		conn.HandleAckExtra(lastRecv, bits, acked, now)
	case wire.HeaderHeartbeat:
		pingID, _, err := wire.DecodeHeartbeatClient(payload)
		if err != nil {
			s.log.Warnw("malformed Heartbeat", "addr", addr, "error", err)
			return
		}
		conn.HandleHeartbeatFromClient(pingID)
	case wire.HeaderWelcome:
		s.handleWelcomeEcho(conn, seq, now)
	case wire.HeaderDisconnect:
		reason, _, err := wire.DecodeDisconnect(payload)
		if err != nil {
			s.log.Warnw("malformed Disconnect", "addr", addr, "error", err)
			return
		}
		delete(s.byAddr, key)
		s.teardownConnection(conn, decodeDisconnectReason(reason), now)
	case wire.HeaderUnreliable:
		s.dispatchApplication(conn, payload)
	case wire.HeaderReliable:
		if conn.HandleInboundReliable(seq) {
			s.dispatchApplication(conn, payload)
		}
	default:
		s.log.Warnw("dropping datagram the server shouldn't receive", "addr", addr, "header", header.String())
	}
}

func (s *Server) dispatchApplication(conn *Connection, payload []byte) {
	msgID, body, ok := splitMessageID(payload)
	if !ok {
		s.log.Warnw("dropping application datagram too short for a message id", "conn", conn.ID)
		return
	}
	s.handlers.dispatch(conn, msgID, body)
	s.callbacks.messageReceived(MessageReceivedEvent{Connection: conn, MessageID: msgID, Payload: body})
}

// handleConnect implements the server half of the connection state
// machine in 4.5.5: a Connect from a brand-new address (or one whose
// prior Connection had already gone NotConnected/Rejected) starts a fresh
// two-step handshake; a Connect from an address mid-handshake or already
// Connected is a no-op duplicate per the boundary behavior in §8.
func (s *Server) handleConnect(existing *Connection, known bool, addr *net.UDPAddr, now time.Time) {
	if known {
		switch existing.state {
		case StateNotConnected, StateRejected:
			delete(s.byAddr, addr.String())
			s.releaseID(existing.ID)
			delete(s.byID, existing.ID)
		default:
			return
		}
	}

	if len(s.byAddr) >= s.maxClients {
		s.sendReject(addr, RejectFull)
		return
	}
	id, ok := s.allocateID()
	if !ok {
		s.sendReject(addr, RejectFull)
		return
	}

	conn := newConnection(id, addr, s.socket, s.cfg, s.log.With("conn", id, "addr", addr.String()), false, now)
	conn.metrics = s.metrics
	s.byAddr[addr.String()] = conn
	s.byID[id] = conn
	s.metrics.SetConnections(len(s.byAddr))
	conn.SendReliable(wire.HeaderWelcome, wire.EncodeWelcome(id), s.cfg.MaxSendAttempts, now)
}

func (s *Server) sendReject(addr *net.UDPAddr, reason RejectCode) {
	frame := wire.EncodeFrame(wire.HeaderReject, 0, wire.EncodeReject(uint8(reason), nil))
	if err := s.socket.SendTo(frame, addr); err != nil {
		s.log.Debugw("reject send failed", "addr", addr, "error", err)
	}
}

// handleWelcomeEcho completes the handshake once the client echoes
// Welcome back: the Connection moves from Pending to Connected and the
// rest of the table learns about the new client.
func (s *Server) handleWelcomeEcho(conn *Connection, seq uint16, now time.Time) {
	if !conn.HandleInboundReliable(seq) {
		return
	}
	if conn.state != StatePending {
		return
	}
	conn.MarkConnected(now)
	s.metrics.IncConnects()
	s.callbacks.connected(ConnectedEvent{Connection: conn})
	s.callbacks.clientConnected(ClientConnectedEvent{ID: conn.ID})
	s.broadcastExcept(conn.ID, wire.HeaderClientConnected, wire.EncodeClientID(conn.ID), now)
}

func (s *Server) teardownConnection(conn *Connection, reason DisconnectReason, now time.Time) {
	delete(s.byID, conn.ID)
	s.releaseID(conn.ID)
	conn.MarkNotConnected()
	conn.Close()
	s.metrics.IncDisconnects(reason.String())
	s.metrics.SetConnections(len(s.byAddr))
	s.callbacks.disconnected(DisconnectedEvent{Connection: conn, Reason: reason})
	s.callbacks.clientDisconnected(ClientDisconnectedEvent{ID: conn.ID, Reason: reason})
	s.broadcastExcept(conn.ID, wire.HeaderClientDisconnected, wire.EncodeClientID(conn.ID), now)
}

func (s *Server) broadcastExcept(exceptID uint16, header wire.HeaderType, payload []byte, now time.Time) {
	for id, conn := range s.byID {
		if id == exceptID || conn.state != StateConnected {
			continue
		}
		conn.SendReliable(header, payload, s.cfg.MaxSendAttempts, now)
	}
}

// Send transmits an application message to a single connected client.
func (s *Server) Send(id uint16, messageID uint16, body []byte, mode SendMode, maxAttempts int) error {
	conn, ok := s.byID[id]
	if !ok || conn.state != StateConnected {
		return fmt.Errorf("netpeer: no connected client with id %d", id)
	}
	s.sendTo(conn, messageID, body, mode, maxAttempts)
	return nil
}

// Broadcast transmits an application message to every connected client
// except those in exceptIDs.
func (s *Server) Broadcast(messageID uint16, body []byte, mode SendMode, maxAttempts int, exceptIDs ...uint16) {
	skip := make(map[uint16]bool, len(exceptIDs))
	for _, id := range exceptIDs {
		skip[id] = true
	}
	for id, conn := range s.byID {
		if skip[id] || conn.state != StateConnected {
			continue
		}
		s.sendTo(conn, messageID, body, mode, maxAttempts)
	}
}

func (s *Server) sendTo(conn *Connection, messageID uint16, body []byte, mode SendMode, maxAttempts int) {
	w := wire.NewWriter()
	w.WriteMessageID(messageID)
	w.WriteBytes(body)
	now := time.Now()
	if mode == Unreliable {
		conn.sendUnreliable(wire.HeaderUnreliable, w.Bytes())
		return
	}
	conn.SendReliable(wire.HeaderReliable, w.Bytes(), maxAttempts, now)
}

// Disconnect kicks a connected client, sending a best-effort Disconnect
// datagram before tearing the Connection down locally.
func (s *Server) Disconnect(id uint16, reason DisconnectReason) {
	conn, ok := s.byID[id]
	if !ok {
		return
	}
	conn.sendUnreliable(wire.HeaderDisconnect, wire.EncodeDisconnect(uint8(reason), nil))
	for addr, c := range s.byAddr {
		if c.ID == id {
			delete(s.byAddr, addr)
			break
		}
	}
	s.teardownConnection(conn, reason, time.Now())
}

func (s *Server) allocateID() (uint16, bool) {
	if n := len(s.freeIDs); n > 0 {
		id := s.freeIDs[0]
		s.freeIDs = s.freeIDs[1:]
		return id, true
	}
	if int(s.nextFreshID) <= s.maxClients {
		id := s.nextFreshID
		s.nextFreshID++
		return id, true
	}
	return 0, false
}

func (s *Server) releaseID(id uint16) {
	i := sort.Search(len(s.freeIDs), func(i int) bool { return s.freeIDs[i] >= id })
	s.freeIDs = append(s.freeIDs, 0)
	copy(s.freeIDs[i+1:], s.freeIDs[i:])
	s.freeIDs[i] = id
}
