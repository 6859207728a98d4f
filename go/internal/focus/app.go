package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/focus/projection"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionRepository defines what the lifecycle manager needs from the
// record store.
type SessionRepository interface {
	CreateSession(ctx context.Context, sess *models.FocusSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.FocusSession, error)
	GetActiveSessionForUser(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	FinalizeSession(ctx context.Context, id uuid.UUID, status models.SessionStatus, endTime time.Time, durationMinutes *int) (*models.FocusSession, error)
	FinalizeAllActive(ctx context.Context, userID uuid.UUID, status models.SessionStatus, endTime time.Time) ([]*models.FocusSession, error)
	UpdateSessionTask(ctx context.Context, id uuid.UUID, taskID *uuid.UUID, now time.Time) (*models.FocusSession, error)
}

// App is the session lifecycle manager. It owns every transition of the
// authoritative record and keeps the per-user tracker (local echo) in step.
// The feed reconciler folds the remote echo into the same trackers, so both
// event sources meet in one reducer.
type App struct {
	repo     SessionRepository
	trackers *tracker.Registry
	clock    clockwork.Clock
}

// NewApp creates a new focus session lifecycle manager.
func NewApp(repo SessionRepository, trackers *tracker.Registry, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		trackers: trackers,
		clock:    clock,
	}
}

// Trackers exposes the registry for the feed reconciler and the gateway.
func (a *App) Trackers() *tracker.Registry {
	return a.trackers
}

// StartSession starts a new focus session for the user. A nil
// DurationMinutes means chronometer mode. If a locally-known active session
// exists it is interrupted first, sequenced before the create so no two
// writes from this process race each other. Any other active rows for the
// user (transient duplicates from a lost race) are interrupted on the way
// in as read-repair.
//
// The tracker is updated optimistically before the create is confirmed. On
// a write failure the echo is deliberately not rolled back; callers recover
// by re-syncing against the authoritative record (Resync).
func (a *App) StartSession(ctx context.Context, req StartSessionRequest) (*models.FocusSession, error) {
	now := a.clock.Now().UTC()
	t := a.trackers.GetOrCreate(ctx, req.UserID)

	if state := t.State(); state.IsRunning {
		if _, err := a.InterruptSession(ctx, req.UserID); err != nil {
			return nil, fmt.Errorf("failed to interrupt previous session: %w", err)
		}
	}

	repaired, err := a.repo.FinalizeAllActive(ctx, req.UserID, models.SessionStatusInterrupted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to clear stale active sessions: %w", err)
	}
	if len(repaired) > 0 {
		log.Warn().
			Str("user_id", req.UserID.String()).
			Int("count", len(repaired)).
			Msg("interrupted stale active sessions before start")
	}

	sess := &models.FocusSession{
		ID:              uuid.New(),
		UserID:          req.UserID,
		TaskID:          req.TaskID,
		StartTime:       now,
		DurationMinutes: req.DurationMinutes,
		Status:          models.SessionStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Optimistic local echo. The remote echo arriving later through the
	// feed re-adopts the same session id, which the tracker treats as a
	// refresh.
	t.Adopt(sess, now)

	if err := a.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", req.UserID.String()).
		Str("session_id", sess.ID.String()).
		Str("mode", string(sess.Mode())).
		Msg("focus session started")

	return sess, nil
}

// CompleteSession finalizes the tracked active session as completed.
func (a *App) CompleteSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	return a.finalize(ctx, userID, models.SessionStatusCompleted)
}

// InterruptSession finalizes the tracked active session as interrupted.
// This is the user-facing cancellation primitive; calling it after the
// session was finalized elsewhere degrades to a no-op.
func (a *App) InterruptSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error) {
	return a.finalize(ctx, userID, models.SessionStatusInterrupted)
}

// UpdateSessionTask reassigns or clears (nil) the task on the tracked
// active session without touching any timing field.
func (a *App) UpdateSessionTask(ctx context.Context, userID uuid.UUID, taskID *uuid.UUID) (*models.FocusSession, error) {
	t := a.trackers.GetOrCreate(ctx, userID)
	state := t.State()
	if state.TrackedSessionID == nil {
		return nil, ErrNoActiveSession
	}
	sessionID := *state.TrackedSessionID

	sess, err := a.repo.UpdateSessionTask(ctx, sessionID, taskID, a.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	t.SetTask(sessionID, taskID)
	return sess, nil
}

// Resync re-derives the user's tracker from an authoritative read. This is
// the read-through every consumer goes through on (re)connect: it covers
// events missed entirely while disconnected, and it is where a session that
// expired during the gap gets detected and completed exactly once.
func (a *App) Resync(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error) {
	t := a.trackers.GetOrCreate(ctx, userID)

	sess, err := a.repo.GetActiveSessionForUser(ctx, userID)
	if err != nil {
		return tracker.TimerState{}, err
	}
	if sess == nil {
		t.Clear()
		return t.State(), nil
	}

	proj := t.Adopt(sess, a.clock.Now().UTC())
	if proj.Expired && t.FireExpiry(sess.ID) {
		log.Info().
			Str("user_id", userID.String()).
			Str("session_id", sess.ID.String()).
			Msg("session expired while disconnected, completing")
		if _, err := a.CompleteSession(ctx, userID); err != nil {
			return tracker.TimerState{}, err
		}
	}

	return t.State(), nil
}

// ExpireSession completes sessionID after its timer ran out, but only while
// it is still the user's tracked session. Used as the registry's expiry
// action.
func (a *App) ExpireSession(ctx context.Context, userID, sessionID uuid.UUID) {
	t := a.trackers.GetOrCreate(ctx, userID)
	state := t.State()
	if state.TrackedSessionID == nil || *state.TrackedSessionID != sessionID {
		return
	}

	if _, err := a.CompleteSession(ctx, userID); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Str("session_id", sessionID.String()).
			Msg("failed to complete expired session")
	}
}

// finalize transitions the tracked active session into a terminal status.
// The conditional write in the repository makes a lost race a no-op; the
// tracker is cleared either way.
func (a *App) finalize(ctx context.Context, userID uuid.UUID, status models.SessionStatus) (*models.FocusSession, error) {
	now := a.clock.Now().UTC()
	t := a.trackers.GetOrCreate(ctx, userID)

	var (
		sessionID uuid.UUID
		startTime time.Time
	)
	if state := t.State(); state.TrackedSessionID != nil {
		sessionID = *state.TrackedSessionID
		startTime = state.StartTime
	} else {
		active, err := a.repo.GetActiveSessionForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, ErrNoActiveSession
		}
		sessionID = active.ID
		startTime = active.StartTime
	}

	finalMinutes := projection.FinalDurationMinutes(startTime, now)

	sess, err := a.repo.FinalizeSession(ctx, sessionID, status, now, &finalMinutes)
	if err != nil {
		return nil, err
	}

	t.ClearIf(sessionID)

	if sess == nil {
		// Another actor won the transition; fetch whatever terminal state
		// it left behind so the caller sees the authoritative outcome.
		current, err := a.repo.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return current, nil
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID.String()).
		Str("status", string(status)).
		Int("duration_min", finalMinutes).
		Msg("focus session finalized")

	return sess, nil
}
