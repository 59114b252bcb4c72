package netpeer

import (
	"net"
	"sync"

	"reliudp/transport"
)

// inboundMsg is one entry in the queue handed from the I/O goroutine to
// the tick thread. err is set (with data/from nil) exactly once, when the
// transport has failed fatally and the receive loop is giving up.
type inboundMsg struct {
	data []byte
	from *net.UDPAddr
	err  error
}

// receiver runs transport.Socket.TryReceive on its own goroutine and
// queues results for a tick loop to drain without blocking — the
// datagram receive may block up to the transport's poll timeout, but the
// tick thread never does (see the Connection concurrency model).
type receiver struct {
	ch   chan inboundMsg
	stop chan struct{}
	wg   sync.WaitGroup
}

func startReceiver(socket transport.Socket) *receiver {
	r := &receiver{
		ch:   make(chan inboundMsg, 256),
		stop: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop(socket)
	return r
}

func (r *receiver) loop(socket transport.Socket) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		data, addr, err := socket.TryReceive()
		if err != nil {
			r.emit(inboundMsg{err: err})
			return
		}
		if data == nil {
			continue
		}
		r.emit(inboundMsg{data: data, from: addr})
	}
}

func (r *receiver) emit(msg inboundMsg) {
	select {
	case r.ch <- msg:
	case <-r.stop:
	}
}

// drain calls handle for every datagram currently queued, without
// blocking for more to arrive. It returns early, reporting the transport
// error, the moment a fatal one is dequeued.
func (r *receiver) drain(handle func(data []byte, from *net.UDPAddr)) (int, error) {
	processed := 0
	for {
		select {
		case msg := <-r.ch:
			if msg.err != nil {
				return processed, msg.err
			}
			processed++
			handle(msg.data, msg.from)
		default:
			return processed, nil
		}
	}
}

func (r *receiver) close() {
	close(r.stop)
	r.wg.Wait()
}
