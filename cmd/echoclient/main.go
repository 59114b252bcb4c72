// Command echoclient connects to an echoserver, sends "ping N" (N counting
// up from 1) as a reliable application message every second, and logs
// what comes back. Grounded on the teacher's core/main.go entrypoint shape, repurposed
// to drive a netpeer.Client instead of the SA-MP game loop.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reliudp/netpeer"
	"reliudp/pkg/logger"
	"reliudp/transport"
)

const (
	version       = "1.0.0"
	echoMessageID = 1
)

func main() {
	logger.Banner("reliudp echoclient", version)

	addr := "127.0.0.1:7777"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	hostAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		logger.Fatal("invalid server address %q: %v", addr, err)
	}

	done := make(chan struct{})
	callbacks := netpeer.Callbacks{
		OnConnected: func(e netpeer.ConnectedEvent) {
			logger.Success("connected, assigned id %d", e.Connection.ID)
		},
		OnConnectionFailed: func(e netpeer.ConnectionFailedEvent) {
			logger.Error("connect failed: %s", e.Reason)
			close(done)
		},
		OnDisconnected: func(e netpeer.DisconnectedEvent) {
			logger.Warn("disconnected: %s", e.Reason)
			close(done)
		},
		OnMessageReceived: func(e netpeer.MessageReceivedEvent) {
			logger.Info("echo: %s", string(e.Payload))
		},
	}

	client := netpeer.NewClient(transport.IPv4, transport.DefaultBufferSize, netpeer.DefaultConfig(), nil, callbacks)
	if err := client.Connect(hostAddr, nil); err != nil {
		logger.Fatal("failed to connect: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	tickTicker := time.NewTicker(20 * time.Millisecond)
	defer tickTicker.Stop()
	sendTicker := time.NewTicker(time.Second)
	defer sendTicker.Stop()

	n := 0
	for {
		select {
		case <-done:
			return
		case <-tickTicker.C:
			if _, err := client.Tick(); err != nil {
				logger.Error("tick error: %v", err)
			}
		case <-sendTicker.C:
			if client.State() != netpeer.StateConnected {
				continue
			}
			n++
			msg := fmt.Sprintf("ping %d", n)
			if err := client.Send(echoMessageID, []byte(msg), netpeer.Reliable, 15); err != nil {
				logger.Warn("send failed: %v", err)
			}
		case sig := <-sigChan:
			logger.Warn("received signal: %v", sig)
			_ = client.Disconnect()
			logger.Success("client disconnected")
			return
		}
	}
}
