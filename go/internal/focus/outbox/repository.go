package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEventNotFound is returned when an outbox row is missing or already sent.
var ErrEventNotFound = errors.New("outbox event not found or already sent")

// Repository reads and settles outbox rows. Inserts happen inside the
// session repository's transactions; the relay only drains.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new outbox repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FetchByID returns an unsent outbox event by id.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, event_type, payload, created_at, sent_at
		FROM focus_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)

	var ev OutboxEvent
	if err := row.Scan(&ev.ID, &ev.UserID, &ev.EventType, &ev.Payload, &ev.CreatedAt, &ev.SentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return &ev, nil
}

// FetchUnsent returns up to limit unsent events in commit order. Used by the
// fallback poll that catches events whose NOTIFY was lost.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, event_type, payload, created_at, sent_at
		FROM focus_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.EventType, &ev.Payload, &ev.CreatedAt, &ev.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unsent outbox events: %w", err)
	}
	return events, nil
}

// MarkSent stamps an event as published.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE focus_outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}
