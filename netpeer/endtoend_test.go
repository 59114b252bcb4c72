package netpeer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reliudp/reliability"
	"reliudp/transport"
)

func tickUntil(t *testing.T, timeout time.Duration, cond func() bool, tick func()) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		tick()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func newLoopbackPair(t *testing.T) (*Server, *Client) {
	t.Helper()
	cfg := DefaultConfig()
	srv := NewServer(transport.IPv4, 0, cfg, nil, Callbacks{})
	require.NoError(t, srv.Start(0, 4))
	t.Cleanup(func() { _ = srv.Stop() })

	cli := NewClient(transport.IPv4, 0, cfg, nil, Callbacks{})
	return srv, cli
}

func TestHappyPathConnectS1(t *testing.T) {
	srv, cli := newLoopbackPair(t)

	var connectedServerSide, connectedClientSide bool
	srv.callbacks.OnClientConnected = func(ClientConnectedEvent) { connectedServerSide = true }
	cli.callbacks.OnConnected = func(ConnectedEvent) { connectedClientSide = true }

	serverAddr := srv.socket.LocalAddr().(*net.UDPAddr)
	require.NoError(t, cli.Connect(serverAddr, nil))

	tickUntil(t, 2*time.Second, func() bool {
		return connectedServerSide && connectedClientSide
	}, func() {
		srv.Tick()
		cli.Tick()
	})

	require.Equal(t, StateConnected, cli.State())
	require.Equal(t, 1, srv.ConnectionCount())

	tickUntil(t, time.Second, func() bool {
		return srv.byID[cli.conn.ID].pending.Len() == 0 && cli.conn.pending.Len() == 0
	}, func() {
		srv.Tick()
		cli.Tick()
	})
}

func TestDuplicateMessageDispatchedOnceS2(t *testing.T) {
	srv, cli := newLoopbackPair(t)
	serverAddr := srv.socket.LocalAddr().(*net.UDPAddr)
	require.NoError(t, cli.Connect(serverAddr, nil))

	tickUntil(t, 2*time.Second, func() bool {
		return cli.State() == StateConnected && cli.conn.pending.Len() == 0
	}, func() {
		srv.Tick()
		cli.Tick()
	})

	var handled int
	srv.handlers.Register(42, func(conn *Connection, payload []byte) { handled++ })

	var sentFrame []byte
	conn := cli.conn

	require.NoError(t, cli.Send(42, []byte{0xAA, 0xBB}, Reliable, 5))
	conn.pending.Range(func(pm *reliability.PendingMessage) {
		sentFrame = append([]byte(nil), pm.Frame...)
	})
	require.NotNil(t, sentFrame, "the application send must still be pending until acked")

	tickUntil(t, time.Second, func() bool { return handled >= 1 }, func() {
		srv.Tick()
		cli.Tick()
	})

	// Resend the same reliable frame again to simulate the network
	// delivering it twice; the duplicate filter must suppress the second
	// handler invocation.
	_ = cli.socket.SendTo(sentFrame, serverAddr)
	time.Sleep(20 * time.Millisecond)
	srv.Tick()

	require.Equal(t, 1, handled)
}
