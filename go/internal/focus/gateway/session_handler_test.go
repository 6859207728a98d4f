package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/focus"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/models"
)

// MockLifecycle implements Lifecycle for handler tests.
type MockLifecycle struct {
	StartFunc     func(ctx context.Context, req focus.StartSessionRequest) (*models.FocusSession, error)
	CompleteFunc  func(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	InterruptFunc func(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	TaskFunc      func(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.FocusSession, error)
	ResyncFunc    func(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error)
}

func (m *MockLifecycle) StartSession(ctx context.Context, req focus.StartSessionRequest) (*models.FocusSession, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, req)
	}
	return &models.FocusSession{ID: uuid.New(), UserID: req.UserID, Status: models.SessionStatusActive}, nil
}

func (m *MockLifecycle) CompleteSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, userID)
	}
	return &models.FocusSession{ID: uuid.New(), UserID: userID, Status: models.SessionStatusCompleted}, nil
}

func (m *MockLifecycle) InterruptSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	if m.InterruptFunc != nil {
		return m.InterruptFunc(ctx, userID)
	}
	return &models.FocusSession{ID: uuid.New(), UserID: userID, Status: models.SessionStatusInterrupted}, nil
}

func (m *MockLifecycle) UpdateSessionTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.FocusSession, error) {
	if m.TaskFunc != nil {
		return m.TaskFunc(ctx, userID, taskID)
	}
	return &models.FocusSession{ID: uuid.New(), UserID: userID, TaskID: taskID, Status: models.SessionStatusActive}, nil
}

func (m *MockLifecycle) Resync(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error) {
	if m.ResyncFunc != nil {
		return m.ResyncFunc(ctx, userID)
	}
	return tracker.TimerState{}, nil
}

func postJSON(t *testing.T, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
}

func TestSessionHandler_StartSession(t *testing.T) {
	t.Run("starts a timer session", func(t *testing.T) {
		userID := uuid.New()
		duration := 25
		var gotReq focus.StartSessionRequest
		lifecycle := &MockLifecycle{
			StartFunc: func(ctx context.Context, req focus.StartSessionRequest) (*models.FocusSession, error) {
				gotReq = req
				return &models.FocusSession{ID: uuid.New(), UserID: req.UserID, DurationMinutes: req.DurationMinutes, Status: models.SessionStatusActive}, nil
			},
		}
		h := NewSessionHandler(lifecycle)

		req := postJSON(t, "/api/focus/start", startSessionBody{UserID: userID, DurationMinutes: &duration})
		rec := httptest.NewRecorder()
		h.HandleStartSession(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotReq.UserID != userID {
			t.Error("expected user id passed through")
		}
		if gotReq.DurationMinutes == nil || *gotReq.DurationMinutes != duration {
			t.Error("expected duration passed through")
		}
	})

	t.Run("rejects a non-positive duration", func(t *testing.T) {
		h := NewSessionHandler(&MockLifecycle{})
		zero := 0

		req := postJSON(t, "/api/focus/start", startSessionBody{UserID: uuid.New(), DurationMinutes: &zero})
		rec := httptest.NewRecorder()
		h.HandleStartSession(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects a missing user id", func(t *testing.T) {
		h := NewSessionHandler(&MockLifecycle{})

		req := postJSON(t, "/api/focus/start", startSessionBody{})
		rec := httptest.NewRecorder()
		h.HandleStartSession(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSessionHandler_CompleteSession(t *testing.T) {
	t.Run("completing without an active session maps to 404", func(t *testing.T) {
		lifecycle := &MockLifecycle{
			CompleteFunc: func(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
				return nil, focus.ErrNoActiveSession
			},
		}
		h := NewSessionHandler(lifecycle)

		req := postJSON(t, "/api/focus/complete", userBody{UserID: uuid.New()})
		rec := httptest.NewRecorder()
		h.HandleCompleteSession(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("returns the finalized session", func(t *testing.T) {
		h := NewSessionHandler(&MockLifecycle{})

		req := postJSON(t, "/api/focus/complete", userBody{UserID: uuid.New()})
		rec := httptest.NewRecorder()
		h.HandleCompleteSession(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var sess models.FocusSession
		if err := json.NewDecoder(rec.Body).Decode(&sess); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if sess.Status != models.SessionStatusCompleted {
			t.Errorf("expected completed, got %s", sess.Status)
		}
	})
}

func TestSessionHandler_GetState(t *testing.T) {
	t.Run("returns the resynced projection", func(t *testing.T) {
		userID := uuid.New()
		sessionID := uuid.New()
		lifecycle := &MockLifecycle{
			ResyncFunc: func(ctx context.Context, id uuid.UUID) (tracker.TimerState, error) {
				if id != userID {
					t.Errorf("expected resync for %s, got %s", userID, id)
				}
				return tracker.TimerState{
					Mode:             models.SessionModeTimer,
					IsRunning:        true,
					DisplaySeconds:   900,
					TrackedSessionID: &sessionID,
				}, nil
			},
		}
		h := NewSessionHandler(lifecycle)

		req := httptest.NewRequest(http.MethodGet, "/api/focus/state?user_id="+userID.String(), nil)
		rec := httptest.NewRecorder()
		h.HandleGetState(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var state tracker.TimerState
		if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !state.IsRunning || state.DisplaySeconds != 900 {
			t.Errorf("unexpected state: %+v", state)
		}
	})

	t.Run("rejects a missing user id", func(t *testing.T) {
		h := NewSessionHandler(&MockLifecycle{})

		req := httptest.NewRequest(http.MethodGet, "/api/focus/state", nil)
		rec := httptest.NewRecorder()
		h.HandleGetState(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}
