package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAckRoundTrip(t *testing.T) {
	payload := EncodeAck(7, 0b1010)
	lastRecv, bits, err := DecodeAck(payload)
	require.NoError(t, err)
	require.EqualValues(t, 7, lastRecv)
	require.EqualValues(t, 0b1010, bits)
	require.Len(t, payload, 4, "common-case ack should be 4 payload bytes")
}

func TestAckExtraRoundTrip(t *testing.T) {
	payload := EncodeAckExtra(7, 0b1010, 5)
	lastRecv, bits, acked, err := DecodeAckExtra(payload)
	require.NoError(t, err)
	require.EqualValues(t, 7, lastRecv)
	require.EqualValues(t, 0b1010, bits)
	require.EqualValues(t, 5, acked)
	require.Len(t, payload, 6, "out-of-order ack adds 2 bytes for the acked sequence")
}

func TestWelcomeRoundTrip(t *testing.T) {
	payload := EncodeWelcome(42)
	id, err := DecodeWelcome(payload)
	require.NoError(t, err)
	require.EqualValues(t, 42, id)
}

func TestHeartbeatClientRoundTrip(t *testing.T) {
	payload := EncodeHeartbeatClient(9, 123)
	id, rtt, err := DecodeHeartbeatClient(payload)
	require.NoError(t, err)
	require.EqualValues(t, 9, id)
	require.EqualValues(t, 123, rtt)
}

func TestHeartbeatServerRoundTrip(t *testing.T) {
	payload := EncodeHeartbeatServer(9)
	id, err := DecodeHeartbeatServer(payload)
	require.NoError(t, err)
	require.EqualValues(t, 9, id)
}

func TestDisconnectRoundTrip(t *testing.T) {
	payload := EncodeDisconnect(2, []byte("bye"))
	reason, msg, err := DecodeDisconnect(payload)
	require.NoError(t, err)
	require.EqualValues(t, 2, reason)
	require.Equal(t, []byte("bye"), msg)
}
