// Command nats-bridge runs the embedded NATS broker the eventbridge
// package publishes domain events onto, as a standalone process separate
// from the monitoring daemon. Generalized from the teacher's
// cmd/nats-bridge (a Captain<->Sergeant subject forwarder, a hierarchy
// this module has no equivalent of) down to what the new domain actually
// needs: one broker, started once, with the subjects eventbridge.Bridge
// publishes and subscribes to.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rdvcore/core/internal/nats"
)

func main() {
	port := flag.Int("port", 4222, "NATS listen port")
	wsPort := flag.Int("ws-port", 0, "WebSocket listen port (0 to disable)")
	jetstream := flag.Bool("jetstream", false, "Enable JetStream persistence")
	dataDir := flag.String("data-dir", "data/nats", "JetStream data directory (required if -jetstream)")
	flag.Parse()

	cfg := nats.EmbeddedServerConfig{
		Port:          *port,
		WebSocketPort: *wsPort,
		JetStream:     *jetstream,
		DataDir:       *dataDir,
	}

	server, err := nats.NewEmbeddedServer(cfg)
	if err != nil {
		log.Fatalf("[NATS-BRIDGE] failed to configure server: %v", err)
	}
	if err := server.Start(); err != nil {
		log.Fatalf("[NATS-BRIDGE] failed to start server: %v", err)
	}
	defer server.Shutdown()

	log.Printf("[NATS-BRIDGE] listening at %s", server.URL())
	if *wsPort > 0 {
		log.Printf("[NATS-BRIDGE] websocket listening at %s", server.WebSocketURL())
	}

	if *jetstream {
		client, err := nats.NewClient(server.URL())
		if err != nil {
			log.Fatalf("[NATS-BRIDGE] failed to connect for stream setup: %v", err)
		}
		defer client.Close()

		streams, err := nats.NewStreamManager(client.RawConn())
		if err != nil {
			log.Fatalf("[NATS-BRIDGE] failed to open JetStream context: %v", err)
		}
		if err := streams.SetupStreams(); err != nil {
			log.Fatalf("[NATS-BRIDGE] failed to configure streams: %v", err)
		}
	}

	log.Println("[NATS-BRIDGE] running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[NATS-BRIDGE] shutting down...")
}
