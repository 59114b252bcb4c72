package netpeer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reliudp/pkg/logger"
	"reliudp/wire"
)

func testConn(t *testing.T, active bool) (*Connection, *fakeSocket) {
	t.Helper()
	sock := newFakeSocket()
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4000}
	cfg := DefaultConfig()
	conn := newConnection(1, addr, sock, cfg, logger.Default(), active, time.Now())
	return conn, sock
}

func TestHandleInboundReliableFirstTimeDispatches(t *testing.T) {
	conn, sock := testConn(t, false)

	doHandle := conn.HandleInboundReliable(1)
	require.True(t, doHandle)
	require.Equal(t, uint16(1), conn.lastReceivedSeq)

	header, _, _, err := wire.DecodeFrame(sock.last())
	require.NoError(t, err)
	require.Equal(t, wire.HeaderAck, header)
}

func TestHandleInboundReliableDuplicateDoesNotDispatchButStillAcks(t *testing.T) {
	conn, sock := testConn(t, false)

	require.True(t, conn.HandleInboundReliable(1))
	sent := len(sock.sent)

	doHandle := conn.HandleInboundReliable(1)
	require.False(t, doHandle)
	require.Equal(t, sent+1, len(sock.sent), "a duplicate must still emit an ack")
}

func TestHandleInboundReliableOutOfOrderUsesAckExtra(t *testing.T) {
	conn, sock := testConn(t, false)

	require.True(t, conn.HandleInboundReliable(7))
	require.True(t, conn.HandleInboundReliable(5))

	header, _, payload, err := wire.DecodeFrame(sock.last())
	require.NoError(t, err)
	require.Equal(t, wire.HeaderAckExtra, header)

	lastRecv, _, ackedSeq, err := wire.DecodeAckExtra(payload)
	require.NoError(t, err)
	require.Equal(t, uint16(7), lastRecv)
	require.Equal(t, uint16(5), ackedSeq)
}

func TestHandleInboundReliableOutOfOrderScenarioS4(t *testing.T) {
	conn, _ := testConn(t, false)

	handled := map[uint16]bool{}
	for _, seq := range []uint16{7, 5, 6} {
		handled[seq] = conn.HandleInboundReliable(seq)
	}
	require.True(t, handled[7])
	require.True(t, handled[5])
	require.True(t, handled[6])

	require.Equal(t, uint16(7), conn.lastReceivedSeq)
	require.True(t, conn.receivedWindow.IsSet(0))
	require.True(t, conn.receivedWindow.IsSet(1))
	require.True(t, conn.receivedWindow.IsSet(2))
}

func TestSequenceWrapAroundIsNewer(t *testing.T) {
	conn, _ := testConn(t, false)
	// Sequence ids start at 1, so a receiver only sees 65535 after
	// everything up to 65534 has arrived; on a fresh Connection
	// (lastReceivedSeq 0) 65535 would read as one older than 0.
	conn.lastReceivedSeq = 65534

	require.True(t, conn.HandleInboundReliable(65535))
	require.True(t, conn.HandleInboundReliable(0))
	require.Equal(t, uint16(0), conn.lastReceivedSeq)
}

func TestSendReliableRecordsPendingAndTransmits(t *testing.T) {
	conn, sock := testConn(t, false)

	seq := conn.SendReliable(wire.HeaderReliable, []byte{0xAA}, 3, time.Now())
	require.Equal(t, uint16(1), seq)
	require.Equal(t, 1, conn.pending.Len())
	require.Len(t, sock.sent, 1)
}

func TestHandleAckClearsPendingInOrder(t *testing.T) {
	conn, _ := testConn(t, false)
	now := time.Now()

	seq := conn.SendReliable(wire.HeaderReliable, []byte{1}, 3, now)
	conn.HandleAck(seq, 1, now)

	require.Zero(t, conn.pending.Len())
	require.Equal(t, seq, conn.lastAckedSeq)
}

func TestHandleAckExtraClearsOutOfOrderEntry(t *testing.T) {
	conn, _ := testConn(t, false)
	now := time.Now()

	s1 := conn.SendReliable(wire.HeaderReliable, []byte{1}, 3, now)
	s2 := conn.SendReliable(wire.HeaderReliable, []byte{2}, 3, now)
	require.NotEqual(t, s1, s2)

	conn.HandleAckExtra(s1, 0, s1, now)
	require.Equal(t, 1, conn.pending.Len())
	_, ok := conn.pending.Get(s2)
	require.True(t, ok)
}

func TestRetryExhaustedClearsPendingWithoutTeardown(t *testing.T) {
	conn, sock := testConn(t, true)
	now := time.Now()

	conn.SendReliable(wire.HeaderReliable, []byte{1}, 2, now)
	require.Equal(t, 1, conn.pending.Len())

	pm, _ := conn.pending.Get(1)
	for i := 0; i < 10 && conn.pending.Len() > 0; i++ {
		now = now.Add(time.Second)
		conn.retransmit(pm, now)
	}

	require.Zero(t, conn.pending.Len())
	require.Equal(t, StateConnecting, conn.state, "retry exhaustion never tears down the connection itself")
	require.GreaterOrEqual(t, len(sock.sent), 2)
}

func TestRTTEstimationSmoothing(t *testing.T) {
	conn, _ := testConn(t, true)
	now := time.Now()

	conn.pendingPingID = 5
	conn.pendingPingStart = now
	conn.HandleHeartbeatEcho(5, now.Add(40*time.Millisecond))

	require.Equal(t, 40, conn.rtt)
	require.Equal(t, 40, conn.smoothRtt)

	conn.pendingPingID = 6
	conn.pendingPingStart = now
	conn.HandleHeartbeatEcho(6, now.Add(20*time.Millisecond))
	require.Equal(t, int(40*0.7+20*0.3), conn.smoothRtt)
}

func TestWindowOverflowForcesImmediateRetransmit(t *testing.T) {
	conn, sock := testConn(t, false)
	now := time.Now()

	firstSeq := conn.SendReliable(wire.HeaderReliable, []byte{0x01}, 10, now)
	require.Equal(t, uint16(1), firstSeq)
	sentBefore := len(sock.sent)

	// lastAckedSeq advances to 80 without firstSeq (seq 1) ever having
	// been marked acked in ackedWindow. A further ack that shifts by a
	// full window width pushes firstSeq's tracking bit off the top,
	// unset — that must force an immediate retransmit rather than
	// silently dropping the still-unacknowledged entry.
	conn.lastAckedSeq = 80
	conn.HandleAck(160, 0, now)

	require.Greater(t, len(sock.sent), sentBefore, "a bit falling off unacked must force a retransmit")
	_, stillPending := conn.pending.Get(firstSeq)
	require.True(t, stillPending, "the entry is retried, not dropped, on window overflow")
}

func TestHasTimedOutAndConnectAttemptTimedOut(t *testing.T) {
	conn, _ := testConn(t, true)
	base := time.Now()
	conn.lastHeartbeatAt = base

	require.False(t, conn.HasConnectAttemptTimedOut(base))
	require.True(t, conn.HasConnectAttemptTimedOut(base.Add(6*time.Second)))

	conn.MarkConnected(base)
	require.False(t, conn.HasTimedOut(base.Add(time.Second)))
	require.True(t, conn.HasTimedOut(base.Add(6*time.Second)))
}
