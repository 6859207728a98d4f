package focus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkessler12/focusflow/go/internal/focus/feed"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/mkessler12/focusflow/go/internal/sqlutil"
)

const sessionColumns = "id, user_id, task_id, start_time, end_time, duration_minutes, status, created_at, updated_at"

// Repository implements session record access against Postgres. Every write
// commits its change-feed event into the outbox table in the same
// transaction, so a committed write always has a feed event behind it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new focus session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateSession inserts a new active session record and its INSERT feed event.
func (r *Repository) CreateSession(ctx context.Context, sess *models.FocusSession) error {
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO focus_sessions (id, user_id, task_id, start_time, duration_minutes, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			sess.ID, sess.UserID, sess.TaskID, sess.StartTime, sess.DurationMinutes, sess.Status, sess.CreatedAt,
		)
		if err != nil {
			return err
		}
		return insertSessionEvent(ctx, tx, feed.NewInsert(sess, sess.CreatedAt))
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.FocusSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM focus_sessions WHERE id = $1`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// GetActiveSessionForUser returns the user's current active session, or nil
// when none exists. If transient duplicates are present (a known,
// self-healing race), the most recently started one wins.
func (r *Repository) GetActiveSessionForUser(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM focus_sessions
		 WHERE user_id = $1 AND status = $2
		 ORDER BY start_time DESC
		 LIMIT 1`,
		userID, models.SessionStatusActive)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// FinalizeSession transitions a session out of active with a guarded
// conditional update. If another actor already finalized the record the
// update matches zero rows and (nil, nil) is returned: the lost race is a
// no-op, never an error. A nil durationMinutes is computed in SQL from the
// row's own start_time. The applied transition and its UPDATE feed event
// commit atomically.
func (r *Repository) FinalizeSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, endTime time.Time, durationMinutes *int) (*models.FocusSession, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	var sess *models.FocusSession
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE focus_sessions
			SET status = $2,
			    end_time = $3,
			    duration_minutes = COALESCE($4, CEIL(GREATEST(EXTRACT(EPOCH FROM ($3::timestamptz - start_time)), 0) / 60)::int),
			    updated_at = $3
			WHERE id = $1 AND status = $5
			RETURNING `+sessionColumns,
			id, status, endTime, durationMinutes, models.SessionStatusActive,
		)

		updated, err := scanSession(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil // already terminal, nothing to do
			}
			return err
		}
		sess = updated
		return insertSessionEvent(ctx, tx, feed.NewUpdate(nil, updated, endTime))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize session: %w", err)
	}
	return sess, nil
}

// FinalizeAllActive finalizes every active session the user has. Used as
// read-repair on start so transient duplicate actives (two devices starting
// near-simultaneously) converge instead of lingering. Final durations are
// computed in SQL from each row's own start_time.
func (r *Repository) FinalizeAllActive(ctx context.Context, userID uuid.UUID, status models.SessionStatus, endTime time.Time) ([]*models.FocusSession, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	var finalized []*models.FocusSession
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE focus_sessions
			SET status = $2,
			    end_time = $3,
			    duration_minutes = CEIL(GREATEST(EXTRACT(EPOCH FROM ($3::timestamptz - start_time)), 0) / 60)::int,
			    updated_at = $3
			WHERE user_id = $1 AND status = $4
			RETURNING `+sessionColumns,
			userID, status, endTime, models.SessionStatusActive,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			sess, err := scanSession(rows)
			if err != nil {
				return err
			}
			finalized = append(finalized, sess)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, sess := range finalized {
			if err := insertSessionEvent(ctx, tx, feed.NewUpdate(nil, sess, endTime)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to finalize active sessions: %w", err)
	}
	return finalized, nil
}

// UpdateSessionTask reassigns (or clears) the task on an active session.
// Timing fields are never touched here. Returns ErrNoActiveSession if the
// session is no longer active.
func (r *Repository) UpdateSessionTask(ctx context.Context, id uuid.UUID, taskID *uuid.UUID, now time.Time) (*models.FocusSession, error) {
	var sess *models.FocusSession
	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE focus_sessions
			SET task_id = $2, updated_at = $3
			WHERE id = $1 AND status = $4
			RETURNING `+sessionColumns,
			id, taskID, now, models.SessionStatusActive,
		)

		updated, err := scanSession(row)
		if err != nil {
			return err
		}
		sess = updated
		return insertSessionEvent(ctx, tx, feed.NewUpdate(nil, updated, now))
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("failed to update session task: %w", err)
	}
	return sess, nil
}

// insertSessionEvent writes the change-feed event into the outbox inside the
// same transaction as the session write. A trigger on focus_outbox issues
// the NOTIFY that wakes the relay.
func insertSessionEvent(ctx context.Context, tx pgx.Tx, env feed.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal feed envelope: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO focus_outbox (id, user_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		env.EventID, env.UserID, string(env.Type), payload, env.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*models.FocusSession, error) {
	var sess models.FocusSession
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.TaskID,
		&sess.StartTime,
		&sess.EndTime,
		&sess.DurationMinutes,
		&sess.Status,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
