// Package netpeer implements the connection lifecycle state machine and
// the per-peer scheduling loop (C5 and C6): one Connection per remote
// address, owning a pair of bitfield windows and a pending-message store,
// driven entirely from Tick — no goroutine ever touches a Connection's
// fields except the one calling Tick.
package netpeer

import (
	"net"
	"time"

	"github.com/rs/xid"

	"reliudp/netpeer/netmetrics"
	"reliudp/pkg/logger"
	"reliudp/reliability"
	"reliudp/transport"
	"reliudp/wire"
)

const (
	minRetryInterval  = 10 * time.Millisecond
	defaultRetryGuess = 50 * time.Millisecond
)

// Connection is one remote peer, seen from either the Server's or the
// Client's side. active distinguishes the two roles: an active Connection
// (the Client's single Connection to its server) initiates Connect/
// Heartbeat traffic; a passive one (a Server's per-client Connection)
// only responds.
type Connection struct {
	ID         uint16
	RemoteAddr *net.UDPAddr

	// corrID is a short sortable token minted once per Connection for log
	// correlation. It is distinct from ID: ID is the dense wire-level
	// client identifier reused from the free list, corrID never repeats
	// even across reconnects, so grepping logs for one session doesn't
	// pick up a later client that happened to get the same ID.
	corrID xid.ID

	// metrics is nil unless the owning Server/Client was given a
	// Recorder; every Recorder method tolerates a nil receiver, so call
	// sites never need to check this for nil themselves.
	metrics *netmetrics.Recorder

	state  State
	active bool

	nextOutgoingSeq uint16
	lastReceivedSeq uint16
	receivedWindow  wire.Window

	lastAckedSeq uint16
	ackedWindow  wire.Window

	pending *reliability.Store

	rtt       int
	smoothRtt int

	lastHeartbeatAt   time.Time
	lastHeartbeatSent time.Time
	pendingPingID     uint8
	pendingPingStart  time.Time
	nextPingID        uint8

	cfg    Config
	socket transport.Socket
	log    *logger.Logger
}

// newConnection builds a Connection in StateConnecting (active/client
// side) or StatePending (passive/server side — the Server moves it to
// Connected once the client echoes Welcome back).
func newConnection(id uint16, addr *net.UDPAddr, socket transport.Socket, cfg Config, log *logger.Logger, active bool, now time.Time) *Connection {
	c := &Connection{
		ID:              id,
		RemoteAddr:      addr,
		corrID:          xid.New(),
		active:          active,
		nextOutgoingSeq: 1,
		lastReceivedSeq: 0,
		rtt:             -1,
		smoothRtt:       -1,
		pending:         reliability.NewStore(),
		cfg:             cfg,
		socket:          socket,
	}
	c.log = log.With("corr", c.corrID.String())
	c.lastHeartbeatAt = now
	if active {
		c.state = StateConnecting
	} else {
		c.state = StatePending
	}
	return c
}

// State returns the Connection's current lifecycle state.
func (c *Connection) State() State { return c.state }

// RTT returns the last measured round-trip sample in milliseconds, or -1
// if none has been taken yet.
func (c *Connection) RTT() int { return c.rtt }

// SmoothRTT returns the exponentially smoothed RTT estimate, or -1 if no
// sample has been taken yet.
func (c *Connection) SmoothRTT() int { return c.smoothRtt }

// Touch records that some datagram was just received on this Connection,
// resetting the liveness clock used by both timeout checks. The source
// material only says heartbeats reset the timeout; this implementation
// extends that to any successfully routed inbound datagram, since a fresh
// Ack or application message is just as good evidence of liveness as a
// heartbeat (documented as a resolved ambiguity).
func (c *Connection) Touch(now time.Time) {
	c.lastHeartbeatAt = now
}

// HasTimedOut reports whether an established Connection has gone silent
// longer than cfg.TimeoutTime.
func (c *Connection) HasTimedOut(now time.Time) bool {
	return c.state == StateConnected && now.Sub(c.lastHeartbeatAt) > c.cfg.TimeoutTime
}

// HasConnectAttemptTimedOut reports whether a Connecting attempt has run
// longer than cfg.ConnectTimeoutTime without reaching Connected or
// Rejected.
func (c *Connection) HasConnectAttemptTimedOut(now time.Time) bool {
	return c.state == StateConnecting && now.Sub(c.lastHeartbeatAt) > c.cfg.ConnectTimeoutTime
}

// MarkConnected transitions to StateConnected.
func (c *Connection) MarkConnected(now time.Time) {
	c.state = StateConnected
	c.lastHeartbeatAt = now
}

// MarkRejected transitions to StateRejected; no further traffic should be
// sent on this Connection.
func (c *Connection) MarkRejected() { c.state = StateRejected }

// MarkNotConnected transitions to StateNotConnected and releases every
// pending reliable send back to the pool.
func (c *Connection) MarkNotConnected() {
	c.state = StateNotConnected
	c.pending.Close()
}

// ---- outbound framing -------------------------------------------------

func (c *Connection) sendUnreliable(header wire.HeaderType, payload []byte) {
	frame := wire.EncodeFrame(header, 0, payload)
	if err := c.socket.SendTo(frame, c.RemoteAddr); err != nil {
		c.log.Debugw("send failed", "header", header.String(), "addr", c.RemoteAddr, "error", err)
	}
}

// SendReliable frames header|seq|payload, records it in the pending store
// and transmits it once. header must be one of the reliable-range tags
// (Reliable, Welcome, ClientConnected, ClientDisconnected).
func (c *Connection) SendReliable(header wire.HeaderType, payload []byte, maxAttempts int, now time.Time) uint16 {
	seq := c.nextOutgoingSeq
	c.nextOutgoingSeq++
	frame := wire.EncodeFrame(header, seq, payload)
	c.pending.Add(seq, frame, maxAttempts, now, c.retryInterval())
	if err := c.socket.SendTo(frame, c.RemoteAddr); err != nil {
		c.log.Debugw("send failed", "header", header.String(), "addr", c.RemoteAddr, "error", err)
	}
	return seq
}

// ---- inbound reliable handling (4.5.1) --------------------------------

// HandleInboundReliable applies the duplicate filter and returns whether
// the message body should be dispatched to the application. An ack is
// always emitted as a side effect, even for duplicates — retransmissions
// must clear the sender's pending entry regardless of whether this
// receiver has already handled the payload.
func (c *Connection) HandleInboundReliable(seq uint16) (doHandle bool) {
	g := wire.Gap(seq, c.lastReceivedSeq)
	switch {
	case g > 0:
		c.receivedWindow.ShiftBy(int(g))
		c.lastReceivedSeq = seq
		doHandle = !c.receivedWindow.IsSet(0)
		c.receivedWindow.Set(0)
	case g < 0:
		k := int(-g)
		if k < wire.WindowWidth {
			doHandle = !c.receivedWindow.IsSet(k)
			c.receivedWindow.Set(k)
		} else {
			doHandle = false
			c.log.Debugw("reliable message older than tracked window, assumed duplicate", "seq", seq, "gap", g)
		}
	default:
		doHandle = false
	}
	if !doHandle {
		c.metrics.IncDuplicates()
	}
	c.emitAckFor(seq)
	return doHandle
}

// emitAckFor sends an Ack (in-order case) or AckExtra (out-of-order case)
// for seq, per 4.5.3.
func (c *Connection) emitAckFor(seq uint16) {
	bits := c.receivedWindow.First16()
	if seq == c.lastReceivedSeq {
		c.sendUnreliable(wire.HeaderAck, wire.EncodeAck(c.lastReceivedSeq, bits))
		return
	}
	c.sendUnreliable(wire.HeaderAckExtra, wire.EncodeAckExtra(c.lastReceivedSeq, bits, seq))
}

// ---- ack reception (4.5.4) --------------------------------------------

// HandleAck applies an inbound Ack's (remoteLastRecv, remoteBits) pair to
// the ackedWindow, clearing or force-retransmitting pending entries as
// bits fall off the top of the window.
func (c *Connection) HandleAck(remoteLastRecv, remoteBits uint16, now time.Time) {
	g := wire.Gap(remoteLastRecv, c.lastAckedSeq)
	switch {
	case g > 0:
		old := c.lastAckedSeq
		fall := int(g)
		if fall > wire.WindowWidth {
			fall = wire.WindowWidth
		}
		for k := wire.WindowWidth - fall; k < wire.WindowWidth; k++ {
			seq := old - uint16(k)
			if c.ackedWindow.IsSet(k) {
				c.pending.Clear(seq)
				continue
			}
			if pm, ok := c.pending.Get(seq); ok {
				c.log.Debugw("window overflow, forcing retransmit", "seq", seq)
				c.retransmit(pm, now)
			}
		}
		c.ackedWindow.ShiftBy(int(g))
		c.ackedWindow.Combine(remoteBits)
		// The just-acked seq (remoteLastRecv) now sits at bit 0 after the
		// shift; Combine already sets it whenever the remote's own ack
		// bits report it (which they always do for their own
		// lastReceivedSeq), but we set it explicitly too so this doesn't
		// depend on that invariant holding on the wire.
		c.ackedWindow.Set(0)
		c.pending.Clear(remoteLastRecv)
		c.lastAckedSeq = remoteLastRecv
	case g < 0:
		k := int(-g)
		if k < wire.WindowWidth {
			c.ackedWindow.Set(k)
		}
		c.pending.Clear(remoteLastRecv)
	default:
		c.ackedWindow.Combine(remoteBits)
	}
}

// HandleAckExtra applies the same window update as HandleAck and
// additionally clears the specific out-of-order sequence being
// acknowledged.
func (c *Connection) HandleAckExtra(remoteLastRecv, remoteBits, ackedSeq uint16, now time.Time) {
	c.HandleAck(remoteLastRecv, remoteBits, now)
	c.pending.Clear(ackedSeq)
}

// ---- retry scheduling (4.5.2) -----------------------------------------

func (c *Connection) retryInterval() time.Duration {
	if c.smoothRtt < 0 {
		return defaultRetryGuess
	}
	d := time.Duration(float64(c.smoothRtt)*1.2) * time.Millisecond
	if d < minRetryInterval {
		return minRetryInterval
	}
	return d
}

func (c *Connection) retrySuppressWindow() time.Duration {
	if c.smoothRtt < 0 {
		return 0
	}
	return time.Duration(float64(c.smoothRtt)*0.5) * time.Millisecond
}

// retransmit fires the retry logic for a single pending entry: gives up
// (RetryExhausted) past maxAttempts, suppresses a redundant retry that
// would land too soon after the last send, or resends and rearms.
func (c *Connection) retransmit(pm *reliability.PendingMessage, now time.Time) {
	if now.Sub(pm.LastSendAt) < c.retrySuppressWindow() {
		pm.DueAt = now.Add(c.retryInterval())
		return
	}
	if pm.AttemptsSoFar >= pm.MaxAttempts {
		c.log.Warnw("retry exhausted, giving up on reliable send", "seq", pm.Seq, "attempts", pm.AttemptsSoFar)
		c.metrics.IncRetryExhausted()
		c.pending.Clear(pm.Seq)
		return
	}
	if err := c.socket.SendTo(pm.Frame, c.RemoteAddr); err != nil {
		c.log.Debugw("retransmit failed", "seq", pm.Seq, "error", err)
	}
	c.metrics.IncRetries()
	pm.AttemptsSoFar++
	pm.LastSendAt = now
	pm.DueAt = now.Add(c.retryInterval())
}

// pollRetries resends every pending entry whose due time has elapsed.
func (c *Connection) pollRetries(now time.Time) {
	var due []*reliability.PendingMessage
	c.pending.Range(func(pm *reliability.PendingMessage) {
		if !now.Before(pm.DueAt) {
			due = append(due, pm)
		}
	})
	for _, pm := range due {
		c.retransmit(pm, now)
	}
}

// ---- heartbeats and RTT (4.5.7) ----------------------------------------

// maybeSendHeartbeat sends a ping when this is the active (client) side
// of the Connection and heartbeatInterval has elapsed since the last one.
// Passive (server-side) Connections never originate heartbeats; they only
// echo.
func (c *Connection) maybeSendHeartbeat(now time.Time) {
	if !c.active || c.state != StateConnected {
		return
	}
	if now.Sub(c.lastHeartbeatSent) < c.cfg.HeartbeatInterval {
		return
	}
	c.lastHeartbeatSent = now
	c.pendingPingID = c.nextPingID
	c.nextPingID++
	c.pendingPingStart = now
	lastKnownRTT := int16(-1)
	if c.smoothRtt >= 0 {
		lastKnownRTT = int16(c.smoothRtt)
	}
	c.sendUnreliable(wire.HeaderHeartbeat, wire.EncodeHeartbeatClient(c.pendingPingID, lastKnownRTT))
}

// HandleHeartbeatFromClient is the server-side half of 4.5.7: echo the
// ping id back unchanged so the client can time the round trip.
func (c *Connection) HandleHeartbeatFromClient(pingID uint8) {
	c.sendUnreliable(wire.HeaderHeartbeat, wire.EncodeHeartbeatServer(pingID))
}

// HandleHeartbeatEcho is the client-side half: if pingID matches the
// outstanding ping, take an RTT sample and fold it into smoothRtt.
func (c *Connection) HandleHeartbeatEcho(pingID uint8, now time.Time) {
	if pingID != c.pendingPingID {
		return
	}
	elapsed := now.Sub(c.pendingPingStart)
	sample := int(elapsed.Milliseconds())
	if sample < 1 {
		sample = 1
	}
	c.rtt = sample
	if c.smoothRtt < 0 {
		c.smoothRtt = sample
	} else {
		c.smoothRtt = int(float64(c.smoothRtt)*0.7 + float64(sample)*0.3)
		if c.smoothRtt < 1 {
			c.smoothRtt = 1
		}
	}
	c.metrics.ObserveRTT(sample)
}

// ---- per-tick maintenance ----------------------------------------------

// tick drains due retries and, on the active side, sends a heartbeat or a
// Connect resend when it's time. It does not decide timeouts or state
// transitions on teardown — the owning Peer does that, since it also
// needs to free the connection's id and broadcast to siblings.
func (c *Connection) tick(now time.Time) {
	c.pollRetries(now)
	switch c.state {
	case StateConnecting:
		c.maybeResendConnect(now)
	case StateConnected:
		c.maybeSendHeartbeat(now)
	}
}

func (c *Connection) maybeResendConnect(now time.Time) {
	if !c.active {
		return
	}
	if now.Sub(c.lastHeartbeatSent) < c.cfg.HeartbeatInterval {
		return
	}
	c.lastHeartbeatSent = now
	c.sendUnreliable(wire.HeaderConnect, nil)
}

// Close releases every resource this Connection owns.
func (c *Connection) Close() {
	c.pending.Close()
}
