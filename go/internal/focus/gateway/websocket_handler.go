package gateway

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for timer connections.
// Every new connection gets an authoritative resync before any pushed update,
// so a reconnecting device never resumes from its stale local clock.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	lifecycle         Lifecycle
	trackers          *tracker.Registry

	// subscribed is never pruned: the tracker must keep projecting while
	// no device is connected so a session can still expire and finalize,
	// and a broadcast to a user without connections is a no-op.
	mu         sync.Mutex
	subscribed map[uuid.UUID]bool
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, lifecycle Lifecycle, trackers *tracker.Registry) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		lifecycle:         lifecycle,
		trackers:          trackers,
		subscribed:        make(map[uuid.UUID]bool),
	}
}

// HandleFocusConnection handles WebSocket connections for a user's timer feed
func (h *WebSocketHandler) HandleFocusConnection(w http.ResponseWriter, r *http.Request) {
	// In production the user ID would come from a JWT or session
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	// Resync against the authoritative record before the socket is live
	state, err := h.lifecycle.Resync(r.Context(), userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to resync timer state on connect")
		http.Error(w, "failed to load timer state", http.StatusInternalServerError)
		return
	}

	h.subscribeUser(r.Context(), userID)

	conn, err := h.connectionManager.UpgradeConnection(w, r, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// Push the snapshot as the first message on this connection
	h.connectionManager.SendToConnection(conn, NewStateMessage(state, time.Now()))
}

// subscribeUser wires the user's tracker to the broadcast path once. Every
// state change after that, whether from a tick, a local command or a remote
// feed event, is pushed to all of the user's connections.
func (h *WebSocketHandler) subscribeUser(ctx context.Context, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribed[userID] {
		return
	}
	h.subscribed[userID] = true

	t := h.trackers.GetOrCreate(ctx, userID)
	t.Subscribe(func(state tracker.TimerState) {
		h.connectionManager.BroadcastToUser(userID, NewStateMessage(state, time.Now()))
	})
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	w.Write([]byte("{"))
	w.Write([]byte("\"total_connections\":" + strconv.Itoa(stats["total_connections"].(int)) + ","))
	w.Write([]byte("\"connected_users\":" + strconv.Itoa(stats["connected_users"].(int))))
	w.Write([]byte("}"))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/focus", h.HandleFocusConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
