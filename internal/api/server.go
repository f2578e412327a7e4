package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketsim/internal/config"
	"marketsim/internal/stream"
	"marketsim/pkg/types"
)

// snapshotInterval paces the periodic depth frames pushed to WebSocket
// clients between L3 messages.
const snapshotInterval = 500 * time.Millisecond

// SnapshotProvider is the read-only slice of the session the server needs.
type SnapshotProvider interface {
	Snapshot(depth int) stream.Snapshot
}

// Server runs the HTTP/WebSocket API for downstream consumers.
type Server struct {
	cfg      config.DashboardConfig
	provider SnapshotProvider
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
	stop     chan struct{}
}

// NewServer wires the routes: /health, /api/snapshot, /ws, and /metrics
// backed by the given Prometheus gatherer.
func NewServer(cfg config.DashboardConfig, provider SnapshotProvider, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(cfg, provider, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		provider: provider,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
		stop:     make(chan struct{}),
	}
}

// PublishL3 forwards one L3 message to every WebSocket client. Safe to call
// from the session goroutine: it never blocks.
func (s *Server) PublishL3(msg types.L3Message) {
	s.hub.Broadcast(Frame{Type: "l3", Data: msg})
}

// Start runs the hub, the snapshot pusher, and the HTTP listener. Blocks
// until the server shuts down.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.snapshotLoop()

	s.logger.Info("api server starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping api server")
	close(s.stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// snapshotLoop pushes a depth snapshot to all clients on a fixed cadence.
func (s *Server) snapshotLoop() {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.hub.Broadcast(Frame{Type: "snapshot", Data: s.provider.Snapshot(s.cfg.DepthLevels)})
		}
	}
}
