// Command echoserver is a minimal reliudp server: it accepts connections,
// echoes every application message with id echoMessageID (1) back to its
// sender (other message ids are dropped), and logs the
// connection lifecycle. Grounded on the teacher's core/main.go entrypoint
// shape (banner, loadConfig, signal-driven graceful shutdown), repurposed
// from the SA-MP game loop to drive a netpeer.Server.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"reliudp/netpeer"
	"reliudp/netpeer/netmetrics"
	"reliudp/pkg/logger"
	"reliudp/transport"
)

const (
	version        = "1.0.0"
	echoMessageID  = 1
	echoMaxRetries = 10
)

type config struct {
	Port       int
	MaxClients int
}

func loadConfig() config {
	return config{Port: 7777, MaxClients: 64}
}

func main() {
	logger.Banner("reliudp echoserver", version)
	cfg := loadConfig()

	metrics := netmetrics.NewRecorder("reliudp_echoserver")

	var srv *netpeer.Server

	handlers := netpeer.NewHandlers()
	handlers.Register(echoMessageID, func(conn *netpeer.Connection, payload []byte) {
		logger.Debug("echoing %d bytes back to client %d", len(payload), conn.ID)
		if err := srv.Send(conn.ID, echoMessageID, payload, netpeer.Reliable, echoMaxRetries); err != nil {
			logger.Warn("echo send failed for client %d: %v", conn.ID, err)
		}
	})

	callbacks := netpeer.Callbacks{
		OnConnected: func(e netpeer.ConnectedEvent) {
			logger.Success("client %d connected from %s", e.Connection.ID, e.Connection.RemoteAddr)
		},
		OnDisconnected: func(e netpeer.DisconnectedEvent) {
			logger.Warn("client %d disconnected: %s", e.Connection.ID, e.Reason)
		},
		OnClientConnected: func(e netpeer.ClientConnectedEvent) {
			logger.Info("roster: client %d joined", e.ID)
		},
		OnClientDisconnected: func(e netpeer.ClientDisconnectedEvent) {
			logger.Info("roster: client %d left (%s)", e.ID, e.Reason)
		},
	}

	srv = netpeer.NewServer(transport.IPv4, transport.DefaultBufferSize, netpeer.DefaultConfig(), handlers, callbacks)
	srv.SetMetrics(metrics)

	if err := srv.Start(cfg.Port, cfg.MaxClients); err != nil {
		logger.Fatal("failed to start server: %v", err)
	}
	logger.Info("listening on :%d (max clients %d)", cfg.Port, cfg.MaxClients)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := srv.Tick(); err != nil {
				logger.Error("tick error: %v", err)
			}
		case sig := <-sigChan:
			logger.Warn("received signal: %v", sig)
			logger.Info("shutting down gracefully...")
			if err := srv.Stop(); err != nil {
				logger.Error("error during shutdown: %v", err)
			}
			logger.Success("server stopped")
			return
		}
	}
}
