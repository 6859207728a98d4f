package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Finalizer applies a conditional terminal transition to a session record.
// The update only lands if the row is still active; a lost race returns
// (nil, nil). A nil duration means the store computes the final minutes
// from the row's own start_time. Implemented by the session repository.
type Finalizer interface {
	FinalizeSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, endTime time.Time, durationMinutes *int) (*models.FocusSession, error)
}

// FinalizeHandler handles the disconnect beacon: a client that is being
// unloaded fires one last request to finalize its running session. The
// beacon may arrive after the session was already completed through the
// normal path, so losing the conditional update is a success, not an error.
type FinalizeHandler struct {
	finalizer Finalizer
}

// NewFinalizeHandler creates a new finalize handler
func NewFinalizeHandler(finalizer Finalizer) *FinalizeHandler {
	return &FinalizeHandler{finalizer: finalizer}
}

type finalizeBody struct {
	Status          models.SessionStatus `json:"status"`
	EndTime         *time.Time           `json:"end_time"`
	DurationMinutes *int                 `json:"duration_minutes"`
}

type finalizeResponse struct {
	Success bool                 `json:"success"`
	Applied bool                 `json:"applied"`
	Session *models.FocusSession `json:"session,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleFinalize handles POST /api/sessions/{id}/finalize
func (h *FinalizeHandler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFinalizeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sessionIDStr := extractSessionIDFromPath(r.URL.Path)
	if sessionIDStr == "" {
		writeFinalizeError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	sessionID, err := uuid.Parse(sessionIDStr)
	if err != nil {
		writeFinalizeError(w, http.StatusBadRequest, "invalid session ID format")
		return
	}

	var body finalizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFinalizeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !body.Status.IsTerminal() {
		writeFinalizeError(w, http.StatusBadRequest, "status must be completed or interrupted")
		return
	}
	if body.EndTime == nil {
		writeFinalizeError(w, http.StatusBadRequest, "end_time is required")
		return
	}
	if body.DurationMinutes != nil && *body.DurationMinutes < 0 {
		writeFinalizeError(w, http.StatusBadRequest, "duration_minutes must not be negative")
		return
	}

	// duration_minutes is optional: a chronometer client has no target to
	// report, so the store derives the final minutes from start_time.
	sess, err := h.finalizer.FinalizeSession(r.Context(), sessionID, body.Status, *body.EndTime, body.DurationMinutes)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to finalize session")
		writeFinalizeError(w, http.StatusInternalServerError, "failed to finalize session")
		return
	}

	if sess == nil {
		// Already finalized elsewhere. The beacon's job is done either way.
		log.Debug().Str("session_id", sessionID.String()).Msg("finalize beacon lost the race, no-op")
		writeJSON(w, http.StatusOK, finalizeResponse{Success: true, Applied: false})
		return
	}

	writeJSON(w, http.StatusOK, finalizeResponse{Success: true, Applied: true, Session: sess})
}

func writeFinalizeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// RegisterFinalizeRoutes registers the finalize beacon route
func (h *FinalizeHandler) RegisterFinalizeRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > len("/api/sessions/") && r.URL.Path[len(r.URL.Path)-9:] == "/finalize" {
			h.HandleFinalize(w, r)
		} else {
			http.NotFound(w, r)
		}
	})
}

// extractSessionIDFromPath extracts the session ID from a path like
// /api/sessions/{id}/finalize
func extractSessionIDFromPath(path string) string {
	const prefix = "/api/sessions/"
	const suffix = "/finalize"

	if len(path) <= len(prefix)+len(suffix) {
		return ""
	}

	if path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return ""
	}

	return path[len(prefix) : len(path)-len(suffix)]
}
