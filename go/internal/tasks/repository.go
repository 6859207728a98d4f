package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkessler12/focusflow/go/internal/models"
)

const taskColumns = "id, user_id, title, notes, completed, completed_at, created_at, updated_at"

// Repository implements task data access operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new tasks repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTask creates a new task
func (r *Repository) CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, user_id, title, notes, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, false, now(), now())
		RETURNING `+taskColumns,
		uuid.New(), userID, req.Title, req.Notes,
	)

	task, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID for a specific user
func (r *Repository) GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks retrieves all tasks for a user, newest first
func (r *Repository) ListTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask updates an existing task. Marking a task completed stamps
// completed_at; clearing the flag clears the stamp.
func (r *Repository) UpdateTask(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest, now time.Time) (*models.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $3,
		    notes = $4,
		    completed = $5,
		    completed_at = CASE
		        WHEN $5 AND NOT completed THEN $6::timestamptz
		        WHEN NOT $5 THEN NULL
		        ELSE completed_at
		    END,
		    updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING `+taskColumns,
		id, userID, req.Title, req.Notes, req.Completed, now,
	)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// DeleteTask deletes a task by ID for a specific user
func (r *Repository) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM tasks
		WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Notes,
		&task.Completed,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
