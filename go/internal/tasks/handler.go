package tasks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler exposes task CRUD over HTTP. The user ID comes from a query
// parameter for now; in production it would come from auth middleware.
type Handler struct {
	app *App
}

// NewHandler creates a new tasks HTTP handler
func NewHandler(app *App) *Handler {
	return &Handler{app: app}
}

// HandleTasks handles GET and POST on /api/tasks
func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromQuery(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		tasks, err := h.app.ListTasks(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to list tasks")
			http.Error(w, "failed to list tasks", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, tasks)

	case http.MethodPost:
		var req CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		task, err := h.app.CreateTask(r.Context(), userID, req)
		if err != nil {
			if strings.Contains(err.Error(), "validation failed") {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to create task")
			http.Error(w, "failed to create task", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, task)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleTask handles GET, PUT and DELETE on /api/tasks/{id}
func (h *Handler) HandleTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromQuery(w, r)
	if !ok {
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	taskID, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid task ID format", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := h.app.GetTask(r.Context(), userID, taskID)
		if err != nil {
			h.writeTaskError(w, err, taskID)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodPut:
		var req UpdateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		task, err := h.app.UpdateTask(r.Context(), userID, taskID, req)
		if err != nil {
			if strings.Contains(err.Error(), "validation failed") {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			h.writeTaskError(w, err, taskID)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case http.MethodDelete:
		if err := h.app.DeleteTask(r.Context(), userID, taskID); err != nil {
			h.writeTaskError(w, err, taskID)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// RegisterRoutes registers task routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/tasks", h.HandleTasks)
	mux.HandleFunc("/api/tasks/", h.HandleTask)
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error, taskID uuid.UUID) {
	if errors.Is(err, ErrTaskNotFound) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	log.Error().Err(err).Str("task_id", taskID.String()).Msg("task operation failed")
	http.Error(w, "task operation failed", http.StatusInternalServerError)
}

func userIDFromQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
