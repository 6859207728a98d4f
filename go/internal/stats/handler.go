package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const defaultWindowDays = 30

// StatsRepository defines what the handler needs from the repository
type StatsRepository interface {
	DailyStats(ctx context.Context, userID uuid.UUID, since time.Time) ([]DailyStat, error)
}

// Handler exposes focus statistics over HTTP.
type Handler struct {
	repo  StatsRepository
	clock clockwork.Clock
}

// NewHandler creates a new stats HTTP handler
func NewHandler(repo StatsRepository, clock clockwork.Clock) *Handler {
	return &Handler{repo: repo, clock: clock}
}

// HandleDailyStats handles GET /api/stats/daily
func (h *Handler) HandleDailyStats(w http.ResponseWriter, r *http.Request) {
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

	days := defaultWindowDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, err = strconv.Atoi(daysStr)
		if err != nil || days <= 0 || days > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
	}

	since := h.clock.Now().UTC().AddDate(0, 0, -days)
	stats, err := h.repo.DailyStats(r.Context(), userID, since)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get daily stats")
		http.Error(w, "failed to get daily stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []DailyStat{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to encode daily stats response")
	}
}

// RegisterRoutes registers stats routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/stats/daily", h.HandleDailyStats)
}
