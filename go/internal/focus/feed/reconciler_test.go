package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/models"
)

// MockLifecycle implements Lifecycle for reconciler tests.
type MockLifecycle struct {
	mu            sync.Mutex
	CompleteFunc  func(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	ResyncFunc    func(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error)
	CompleteCalls []uuid.UUID
	ResyncCalls   []uuid.UUID
}

func (m *MockLifecycle) CompleteSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCalls = append(m.CompleteCalls, userID)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLifecycle) Resync(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResyncCalls = append(m.ResyncCalls, userID)
	if m.ResyncFunc != nil {
		return m.ResyncFunc(ctx, userID)
	}
	return tracker.TimerState{}, nil
}

func newTestReconciler(start time.Time) (*Reconciler, *tracker.Registry, *MockLifecycle) {
	clock := clockwork.NewFakeClockAt(start)
	registry := tracker.NewRegistry(clock, nil)
	lifecycle := &MockLifecycle{}
	return NewReconciler(registry, lifecycle, clock), registry, lifecycle
}

func activeSession(userID uuid.UUID, start time.Time, durationMinutes *int) *models.FocusSession {
	return &models.FocusSession{
		ID:              uuid.New(),
		UserID:          userID,
		StartTime:       start,
		DurationMinutes: durationMinutes,
		Status:          models.SessionStatusActive,
	}
}

func TestReconciler_HandleEvent(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("INSERT of an active session adopts it", func(t *testing.T) {
		r, registry, _ := newTestReconciler(start)
		userID := uuid.New()
		sess := activeSession(userID, start.Add(-time.Minute), nil)

		env := NewInsert(sess, start)
		if err := r.HandleEvent(ctx, &env); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}

		state := registry.Get(userID).State()
		if state.TrackedSessionID == nil || *state.TrackedSessionID != sess.ID {
			t.Error("expected tracker to adopt the inserted session")
		}
		if state.DisplaySeconds != 60 {
			t.Errorf("expected display 60, got %d", state.DisplaySeconds)
		}
	})

	t.Run("redelivered terminal UPDATE is idempotent", func(t *testing.T) {
		r, registry, _ := newTestReconciler(start)
		userID := uuid.New()
		sess := activeSession(userID, start, nil)

		insert := NewInsert(sess, start)
		if err := r.HandleEvent(ctx, &insert); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		done := *sess
		done.Status = models.SessionStatusInterrupted
		update := NewUpdate(sess, &done, start.Add(time.Minute))

		for i := 0; i < 3; i++ {
			if err := r.HandleEvent(ctx, &update); err != nil {
				t.Fatalf("terminal update delivery %d failed: %v", i+1, err)
			}
		}

		if registry.Get(userID).State().IsRunning {
			t.Error("expected tracker idle after terminal update")
		}
	})

	t.Run("terminal event for an untracked id is ignored", func(t *testing.T) {
		r, registry, _ := newTestReconciler(start)
		userID := uuid.New()
		current := activeSession(userID, start, nil)

		insert := NewInsert(current, start)
		if err := r.HandleEvent(ctx, &insert); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		// Stale finalization of an older, superseded session
		old := activeSession(userID, start.Add(-time.Hour), nil)
		old.Status = models.SessionStatusInterrupted
		stale := NewUpdate(nil, old, start)
		if err := r.HandleEvent(ctx, &stale); err != nil {
			t.Fatalf("stale update failed: %v", err)
		}

		state := registry.Get(userID).State()
		if state.TrackedSessionID == nil || *state.TrackedSessionID != current.ID {
			t.Error("stale terminal event must not clear the current session")
		}
	})

	t.Run("adopting an already-expired session completes it once", func(t *testing.T) {
		r, _, lifecycle := newTestReconciler(start)
		userID := uuid.New()
		duration := 25
		sess := activeSession(userID, start.Add(-30*time.Minute), &duration)

		env := NewInsert(sess, start)
		if err := r.HandleEvent(ctx, &env); err != nil {
			t.Fatalf("HandleEvent failed: %v", err)
		}
		// Redelivery of the same event must not complete again
		if err := r.HandleEvent(ctx, &env); err != nil {
			t.Fatalf("redelivered HandleEvent failed: %v", err)
		}

		if len(lifecycle.CompleteCalls) != 1 {
			t.Fatalf("expected exactly one completion, got %d", len(lifecycle.CompleteCalls))
		}
		if lifecycle.CompleteCalls[0] != userID {
			t.Error("completion fired for the wrong user")
		}
	})

	t.Run("DELETE clears only the tracked session", func(t *testing.T) {
		r, registry, _ := newTestReconciler(start)
		userID := uuid.New()
		sess := activeSession(userID, start, nil)

		insert := NewInsert(sess, start)
		if err := r.HandleEvent(ctx, &insert); err != nil {
			t.Fatalf("insert failed: %v", err)
		}

		other := activeSession(userID, start, nil)
		staleDelete := NewDelete(other, start)
		if err := r.HandleEvent(ctx, &staleDelete); err != nil {
			t.Fatalf("stale delete failed: %v", err)
		}
		if !registry.Get(userID).State().IsRunning {
			t.Error("delete of an untracked session must be ignored")
		}

		del := NewDelete(sess, start)
		if err := r.HandleEvent(ctx, &del); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if registry.Get(userID).State().IsRunning {
			t.Error("expected tracker idle after delete of the tracked session")
		}
	})

	t.Run("malformed events are rejected", func(t *testing.T) {
		r, _, _ := newTestReconciler(start)

		if err := r.HandleEvent(ctx, &Envelope{Type: ChangeInsert, UserID: uuid.New()}); err == nil {
			t.Error("expected error for INSERT without new record")
		}
		if err := r.HandleEvent(ctx, &Envelope{Type: ChangeDelete, UserID: uuid.New()}); err == nil {
			t.Error("expected error for DELETE without old record")
		}
		if err := r.HandleEvent(ctx, &Envelope{Type: "TRUNCATE", UserID: uuid.New()}); err == nil {
			t.Error("expected error for unknown change type")
		}
	})
}

func TestReconciler_ResyncTracked(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	r, registry, lifecycle := newTestReconciler(start)

	userA := uuid.New()
	userB := uuid.New()
	registry.GetOrCreate(ctx, userA)
	registry.GetOrCreate(ctx, userB)

	r.ResyncTracked(ctx)

	if len(lifecycle.ResyncCalls) != 2 {
		t.Fatalf("expected 2 resyncs, got %d", len(lifecycle.ResyncCalls))
	}
	seen := map[uuid.UUID]bool{}
	for _, id := range lifecycle.ResyncCalls {
		seen[id] = true
	}
	if !seen[userA] || !seen[userB] {
		t.Error("expected every tracked user to be resynced")
	}
}
