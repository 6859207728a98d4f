package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DailyStat is one day's aggregate of finished focus sessions.
type DailyStat struct {
	Day            time.Time `json:"day"`
	SessionCount   int       `json:"session_count"`
	CompletedCount int       `json:"completed_count"`
	FocusMinutes   int       `json:"focus_minutes"`
}

// Repository implements stats data access operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new stats repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DailyStats aggregates finished sessions per day over the window ending at
// now. Interrupted sessions count toward focus minutes too; only fully
// completed ones count as completed.
func (r *Repository) DailyStats(ctx context.Context, userID uuid.UUID, since time.Time) ([]DailyStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', start_time) AS day,
		       COUNT(*) AS session_count,
		       COUNT(*) FILTER (WHERE status = 'completed') AS completed_count,
		       COALESCE(SUM(duration_minutes), 0) AS focus_minutes
		FROM focus_sessions
		WHERE user_id = $1
		  AND status IN ('completed', 'interrupted')
		  AND start_time >= $2
		GROUP BY day
		ORDER BY day`,
		userID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		var s DailyStat
		if err := rows.Scan(&s.Day, &s.SessionCount, &s.CompletedCount, &s.FocusMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate daily stats: %w", err)
	}
	return stats, nil
}
