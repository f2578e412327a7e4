package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"marketsim/internal/config"
)

// Handlers holds all HTTP handler dependencies.
type Handlers struct {
	cfg      config.DashboardConfig
	provider SnapshotProvider
	hub      *Hub
	logger   *slog.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(cfg config.DashboardConfig, provider SnapshotProvider, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		provider: provider,
		hub:      hub,
		logger:   logger.With("component", "api-handlers"),
	}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HandleSnapshot returns the current depth snapshot. An optional ?depth=n
// query overrides the configured level cap.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	depth := h.cfg.DepthLevels
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "depth must be a non-negative integer", http.StatusBadRequest)
			return
		}
		depth = n
	}

	snapshot := h.provider.Snapshot(depth)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed to encode snapshot", "error", err)
	}
}

// HandleWebSocket upgrades the connection and attaches the client to the
// broadcast hub, priming it with a current snapshot.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// The feed carries synthetic data only; any origin may watch it.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn)

	frame := Frame{Type: "snapshot", Data: h.provider.Snapshot(h.cfg.DepthLevels)}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to marshal initial snapshot", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("failed to send initial snapshot to client")
	}
}
