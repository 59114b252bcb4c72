package netpeer

import "net"

// fakeSocket is an in-memory transport.Socket used to unit test Connection
// and Handlers logic without touching a real UDP socket.
type fakeSocket struct {
	sent   [][]byte
	toAddr []net.Addr
	local  net.Addr
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{local: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}}
}

func (f *fakeSocket) SendTo(b []byte, addr net.Addr) error {
	frame := append([]byte(nil), b...)
	f.sent = append(f.sent, frame)
	f.toAddr = append(f.toAddr, addr)
	return nil
}

func (f *fakeSocket) TryReceive() ([]byte, *net.UDPAddr, error) { return nil, nil, nil }

func (f *fakeSocket) LocalAddr() net.Addr { return f.local }

func (f *fakeSocket) Close() error { return nil }

func (f *fakeSocket) last() []byte {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}
