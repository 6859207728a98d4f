package tracker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/focus/projection"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/mkessler12/focusflow/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

// TimerState is the ephemeral per-user timer projection. DisplaySeconds is
// derived, never incremented: every value here is recomputed from the
// tracked session's immutable start time and the wall clock.
type TimerState struct {
	Mode             models.SessionMode `json:"mode"`
	IsRunning        bool               `json:"is_running"`
	DisplaySeconds   int                `json:"display_seconds"`
	TrackedSessionID *uuid.UUID         `json:"tracked_session_id,omitempty"`
	ActiveTaskID     *uuid.UUID         `json:"active_task_id,omitempty"`
	StartTime        time.Time          `json:"start_time"`
	DurationMinutes  *int               `json:"duration_minutes,omitempty"`
}

// Tracker holds one user's timer state. Both the lifecycle manager's local
// echo and the feed reconciler's remote echo fold into the same reducer
// methods, which is what makes redelivered events harmless.
type Tracker struct {
	userID uuid.UUID
	store  snapshot.Store // optional

	mu          sync.Mutex
	state       TimerState
	expiryFired uuid.UUID // session id the expiry callback already fired for
	subscribers []func(TimerState)
}

// New creates a tracker for a user. store may be nil to disable snapshots.
func New(userID uuid.UUID, store snapshot.Store) *Tracker {
	return &Tracker{userID: userID, store: store}
}

// UserID returns the user this tracker belongs to.
func (t *Tracker) UserID() uuid.UUID {
	return t.userID
}

// State returns a copy of the current timer state.
func (t *Tracker) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe registers fn to be called with every state change. Callbacks
// run synchronously under the tracker's reducer, so keep them cheap.
func (t *Tracker) Subscribe(fn func(TimerState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// Adopt makes sess the tracked session and re-derives the display state at
// now. Terminal records clear instead of adopt. Adopting the session that is
// already tracked is a refresh, so self-echoes and redelivered INSERTs are
// no-ops beyond a re-projection. Returns the resulting projection.
func (t *Tracker) Adopt(sess *models.FocusSession, now time.Time) projection.Projection {
	if sess.Status.IsTerminal() {
		t.ClearIf(sess.ID)
		return projection.Projection{}
	}

	proj := projection.FromSession(sess, now)

	t.mu.Lock()
	t.state = TimerState{
		Mode:             proj.Mode,
		IsRunning:        true,
		DisplaySeconds:   proj.DisplaySeconds,
		TrackedSessionID: &sess.ID,
		ActiveTaskID:     sess.TaskID,
		StartTime:        sess.StartTime,
		DurationMinutes:  sess.DurationMinutes,
	}
	t.notifyLocked(context.Background())
	t.mu.Unlock()

	return proj
}

// Reproject recomputes DisplaySeconds at now. Pure computation; it never
// touches the authoritative record. Returns the projection, or false when
// nothing is tracked.
func (t *Tracker) Reproject(now time.Time) (projection.Projection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.IsRunning {
		return projection.Projection{}, false
	}

	proj := projection.Project(t.state.StartTime, now, t.state.DurationMinutes)
	if proj.DisplaySeconds != t.state.DisplaySeconds {
		t.state.DisplaySeconds = proj.DisplaySeconds
		t.notifyLocked(context.Background())
	}
	return proj, true
}

// ClearIf drops the projection iff sessionID is the tracked session.
// Events for other ids are stale or belong to superseded sessions and are
// ignored. Reports whether anything was cleared.
func (t *Tracker) ClearIf(sessionID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.TrackedSessionID == nil || *t.state.TrackedSessionID != sessionID {
		return false
	}
	t.state = TimerState{}
	t.notifyLocked(context.Background())
	return true
}

// Clear unconditionally drops the projection. Used on authoritative resync
// when no active session exists server-side.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.IsRunning && t.state.TrackedSessionID == nil {
		return
	}
	t.state = TimerState{}
	t.notifyLocked(context.Background())
}

// SetTask updates the active task iff sessionID is still tracked.
func (t *Tracker) SetTask(sessionID uuid.UUID, taskID *uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.TrackedSessionID == nil || *t.state.TrackedSessionID != sessionID {
		return
	}
	t.state.ActiveTaskID = taskID
	t.notifyLocked(context.Background())
}

// FireExpiry reports whether the expiry action for sessionID should run.
// It returns true exactly once per session, which is what keeps the
// "expired while disconnected" completion from firing twice when both the
// display tick and a feed event observe remaining == 0.
func (t *Tracker) FireExpiry(sessionID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.expiryFired == sessionID {
		return false
	}
	t.expiryFired = sessionID
	return true
}

// Restore loads the last saved snapshot, if any. Called once when a tracker
// is created so a restarted process shows a plausible timer before the
// authoritative resync lands.
func (t *Tracker) Restore(ctx context.Context) {
	if t.store == nil {
		return
	}

	data, err := t.store.Load(ctx, t.userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", t.userID.String()).Msg("failed to load tracker snapshot")
		return
	}
	if data == nil {
		return
	}

	var state TimerState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn().Err(err).Str("user_id", t.userID.String()).Msg("discarding corrupt tracker snapshot")
		return
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// notifyLocked persists the snapshot and fans out to subscribers. Must be
// called with the mutex held.
func (t *Tracker) notifyLocked(ctx context.Context) {
	if t.store != nil {
		data, err := json.Marshal(t.state)
		if err == nil {
			err = t.store.Save(ctx, t.userID, data)
		}
		if err != nil {
			// Snapshots are best-effort; the authoritative resync covers us.
			log.Warn().Err(err).Str("user_id", t.userID.String()).Msg("failed to save tracker snapshot")
		}
	}

	for _, fn := range t.subscribers {
		fn(t.state)
	}
}
