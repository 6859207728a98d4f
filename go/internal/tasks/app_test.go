package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/models"
)

// MockTasksRepository implements TasksRepository for app tests.
type MockTasksRepository struct {
	CreateFunc func(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error)
	UpdateFunc func(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest, now time.Time) (*models.Task, error)
	DeleteFunc func(ctx context.Context, userID, id uuid.UUID) error
	ListFunc   func(ctx context.Context, userID uuid.UUID) ([]*models.Task, error)
	GetFunc    func(ctx context.Context, userID, id uuid.UUID) (*models.Task, error)

	CreateCount int
	UpdateCount int
}

func (m *MockTasksRepository) CreateTask(ctx context.Context, userID uuid.UUID, req CreateTaskRequest) (*models.Task, error) {
	m.CreateCount++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, req)
	}
	return &models.Task{ID: uuid.New(), UserID: userID, Title: req.Title, Notes: req.Notes}, nil
}

func (m *MockTasksRepository) GetTask(ctx context.Context, userID, id uuid.UUID) (*models.Task, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, id)
	}
	return nil, ErrTaskNotFound
}

func (m *MockTasksRepository) ListTasks(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockTasksRepository) UpdateTask(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest, now time.Time) (*models.Task, error) {
	m.UpdateCount++
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, userID, id, req, now)
	}
	return &models.Task{ID: id, UserID: userID, Title: req.Title, Notes: req.Notes, Completed: req.Completed}, nil
}

func (m *MockTasksRepository) DeleteTask(ctx context.Context, userID, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, id)
	}
	return nil
}

func TestApp_CreateTask(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()

	t.Run("rejects an empty title before reaching the store", func(t *testing.T) {
		repo := &MockTasksRepository{}
		app := NewApp(repo, clock)

		if _, err := app.CreateTask(ctx, uuid.New(), CreateTaskRequest{}); err == nil {
			t.Error("expected validation error for empty title")
		}
		if repo.CreateCount != 0 {
			t.Error("invalid request must not reach the repository")
		}
	})

	t.Run("passes a valid request through", func(t *testing.T) {
		repo := &MockTasksRepository{}
		app := NewApp(repo, clock)

		task, err := app.CreateTask(ctx, uuid.New(), CreateTaskRequest{Title: "write report", Notes: "q2 numbers"})
		if err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		if task.Title != "write report" {
			t.Errorf("unexpected title: %s", task.Title)
		}
	})
}

func TestApp_UpdateTask(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	t.Run("stamps updates with the app clock", func(t *testing.T) {
		var gotNow time.Time
		repo := &MockTasksRepository{
			UpdateFunc: func(ctx context.Context, userID, id uuid.UUID, req UpdateTaskRequest, now time.Time) (*models.Task, error) {
				gotNow = now
				return &models.Task{ID: id, UserID: userID, Title: req.Title, Completed: req.Completed}, nil
			},
		}
		app := NewApp(repo, clock)

		if _, err := app.UpdateTask(ctx, uuid.New(), uuid.New(), UpdateTaskRequest{Title: "t", Completed: true}); err != nil {
			t.Fatalf("UpdateTask failed: %v", err)
		}
		if !gotNow.Equal(clock.Now().UTC()) {
			t.Errorf("expected clock time %v, got %v", clock.Now().UTC(), gotNow)
		}
	})

	t.Run("rejects an empty title", func(t *testing.T) {
		repo := &MockTasksRepository{}
		app := NewApp(repo, clock)

		if _, err := app.UpdateTask(ctx, uuid.New(), uuid.New(), UpdateTaskRequest{}); err == nil {
			t.Error("expected validation error for empty title")
		}
		if repo.UpdateCount != 0 {
			t.Error("invalid request must not reach the repository")
		}
	})
}
