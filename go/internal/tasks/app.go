package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TasksRepository defines what the app layer needs from the repository
type TasksRepository interface {
	CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error)
	GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	UpdateTask(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest, now time.Time) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id uuid.UUID) error
}

// App handles task business logic
type App struct {
	repo  TasksRepository
	clock clockwork.Clock
}

// NewApp creates a new tasks App
func NewApp(repo TasksRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// CreateTask creates a new task with validation
func (a *App) CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("validation failed: title is required")
	}

	task, err := a.repo.CreateTask(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	log.Info().
		Str("task_id", task.ID.String()).
		Str("user_id", userID.String()).
		Msg("created task")
	return task, nil
}

// GetTask retrieves a task by ID
func (a *App) GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	return a.repo.GetTask(ctx, userID, id)
}

// ListTasks retrieves all tasks for a user
func (a *App) ListTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	tasks, err := a.repo.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask updates an existing task with validation
func (a *App) UpdateTask(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest) (*models.Task, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("validation failed: title cannot be empty")
	}

	task, err := a.repo.UpdateTask(ctx, userID, id, req, a.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("task_id", task.ID.String()).
		Str("user_id", userID.String()).
		Bool("completed", task.Completed).
		Msg("updated task")
	return task, nil
}

// DeleteTask deletes a task by ID
func (a *App) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if err := a.repo.DeleteTask(ctx, userID, id); err != nil {
		return err
	}

	log.Info().
		Str("task_id", id.String()).
		Str("user_id", userID.String()).
		Msg("deleted task")
	return nil
}
