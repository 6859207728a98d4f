package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/focus"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Lifecycle defines the session lifecycle operations the gateway exposes
// over HTTP. Implemented by the focus app.
type Lifecycle interface {
	StartSession(ctx context.Context, req focus.StartSessionRequest) (*models.FocusSession, error)
	CompleteSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	InterruptSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	UpdateSessionTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.FocusSession, error)
	Resync(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error)
}

// SessionHandler handles HTTP requests for session lifecycle commands.
type SessionHandler struct {
	lifecycle Lifecycle
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(lifecycle Lifecycle) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle}
}

type startSessionBody struct {
	UserID          uuid.UUID  `json:"user_id"`
	TaskID          *uuid.UUID `json:"task_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}

type userBody struct {
	UserID uuid.UUID `json:"user_id"`
}

type updateTaskBody struct {
	UserID uuid.UUID  `json:"user_id"`
	TaskID *uuid.UUID `json:"task_id"`
}

// HandleStartSession handles POST /api/focus/start
func (h *SessionHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body startSessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if body.DurationMinutes != nil && *body.DurationMinutes <= 0 {
		http.Error(w, "duration_minutes must be positive", http.StatusBadRequest)
		return
	}

	sess, err := h.lifecycle.StartSession(r.Context(), focus.StartSessionRequest{
		UserID:          body.UserID,
		TaskID:          body.TaskID,
		DurationMinutes: body.DurationMinutes,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", body.UserID.String()).Msg("failed to start session")
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// HandleCompleteSession handles POST /api/focus/complete
func (h *SessionHandler) HandleCompleteSession(w http.ResponseWriter, r *http.Request) {
	h.handleFinish(w, r, h.lifecycle.CompleteSession)
}

// HandleInterruptSession handles POST /api/focus/interrupt
func (h *SessionHandler) HandleInterruptSession(w http.ResponseWriter, r *http.Request) {
	h.handleFinish(w, r, h.lifecycle.InterruptSession)
}

func (h *SessionHandler) handleFinish(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*models.FocusSession, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body userBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	sess, err := fn(r.Context(), body.UserID)
	if err != nil {
		if errors.Is(err, focus.ErrNoActiveSession) {
			http.Error(w, "no active session", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("user_id", body.UserID.String()).Msg("failed to finish session")
		http.Error(w, "failed to finish session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// HandleUpdateTask handles POST /api/focus/task
func (h *SessionHandler) HandleUpdateTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body updateTaskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.UserID == uuid.Nil {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.lifecycle.UpdateSessionTask(r.Context(), body.UserID, body.TaskID)
	if err != nil {
		if errors.Is(err, focus.ErrNoActiveSession) {
			http.Error(w, "no active session", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("user_id", body.UserID.String()).Msg("failed to update session task")
		http.Error(w, "failed to update session task", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// HandleGetState handles GET /api/focus/state. The response is always the
// authoritative projection, never a cached counter.
func (h *SessionHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

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

	state, err := h.lifecycle.Resync(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to resync timer state")
		http.Error(w, "failed to get timer state", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// RegisterSessionRoutes registers session lifecycle HTTP routes
func (h *SessionHandler) RegisterSessionRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/focus/start", h.HandleStartSession)
	mux.HandleFunc("/api/focus/complete", h.HandleCompleteSession)
	mux.HandleFunc("/api/focus/interrupt", h.HandleInterruptSession)
	mux.HandleFunc("/api/focus/task", h.HandleUpdateTask)
	mux.HandleFunc("/api/focus/state", h.HandleGetState)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
