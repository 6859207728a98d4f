package focus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/focus/projection"
	"github.com/mkessler12/focusflow/go/internal/models"
)

// MockSessionRepository implements SessionRepository with the same
// conditional-update semantics as the real store. Func fields override
// individual operations when a test needs a failure or a race.
type MockSessionRepository struct {
	mu       sync.Mutex
	Sessions map[uuid.UUID]*models.FocusSession

	CreateFunc   func(ctx context.Context, sess *models.FocusSession) error
	FinalizeFunc func(ctx context.Context, id uuid.UUID, status models.SessionStatus, endTime time.Time, durationMinutes *int) (*models.FocusSession, error)

	CreateCount   int
	FinalizeCount int
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[uuid.UUID]*models.FocusSession),
	}
}

func (m *MockSessionRepository) CreateSession(ctx context.Context, sess *models.FocusSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCount++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, sess)
	}

	cp := *sess
	m.Sessions[sess.ID] = &cp
	return nil
}

func (m *MockSessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.Sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *MockSessionRepository) GetActiveSessionForUser(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.FocusSession
	for _, sess := range m.Sessions {
		if sess.UserID != userID || sess.Status != models.SessionStatusActive {
			continue
		}
		if latest == nil || sess.StartTime.After(latest.StartTime) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *MockSessionRepository) FinalizeSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, endTime time.Time, durationMinutes *int) (*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FinalizeCount++
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(ctx, id, status, endTime, durationMinutes)
	}

	sess, ok := m.Sessions[id]
	if !ok || sess.Status != models.SessionStatusActive {
		// Guarded update found no active row
		return nil, nil
	}

	minutes := 0
	if durationMinutes != nil {
		minutes = *durationMinutes
	} else {
		minutes = projection.FinalDurationMinutes(sess.StartTime, endTime)
	}

	sess.Status = status
	sess.EndTime = &endTime
	sess.DurationMinutes = &minutes
	sess.UpdatedAt = endTime
	cp := *sess
	return &cp, nil
}

func (m *MockSessionRepository) FinalizeAllActive(ctx context.Context, userID uuid.UUID, status models.SessionStatus, endTime time.Time) ([]*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var finalized []*models.FocusSession
	for _, sess := range m.Sessions {
		if sess.UserID != userID || sess.Status != models.SessionStatusActive {
			continue
		}
		mins := int(endTime.Sub(sess.StartTime) / time.Minute)
		if endTime.Sub(sess.StartTime)%time.Minute != 0 {
			mins++
		}
		if mins < 0 {
			mins = 0
		}
		sess.Status = status
		sess.EndTime = &endTime
		sess.DurationMinutes = &mins
		sess.UpdatedAt = endTime
		cp := *sess
		finalized = append(finalized, &cp)
	}
	return finalized, nil
}

func (m *MockSessionRepository) UpdateSessionTask(ctx context.Context, id uuid.UUID, taskID *uuid.UUID, now time.Time) (*models.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.Sessions[id]
	if !ok || sess.Status != models.SessionStatusActive {
		return nil, ErrNoActiveSession
	}
	sess.TaskID = taskID
	sess.UpdatedAt = now
	cp := *sess
	return &cp, nil
}

// ActiveCount reports how many active sessions the user has in the store.
func (m *MockSessionRepository) ActiveCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, sess := range m.Sessions {
		if sess.UserID == userID && sess.Status == models.SessionStatusActive {
			n++
		}
	}
	return n
}
