package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/snapshot"
	"github.com/rs/zerolog/log"
)

// ExpiryFunc is invoked (at most once per session) when a tracked timer-mode
// session is observed past its target duration. It is expected to call the
// lifecycle manager's CompleteSession.
type ExpiryFunc func(ctx context.Context, userID, sessionID uuid.UUID)

// Registry owns the per-user trackers and the periodic re-projection tick
// that advances displayed countdowns between feed events.
type Registry struct {
	clock    clockwork.Clock
	store    snapshot.Store
	onExpire ExpiryFunc

	mu       sync.RWMutex
	trackers map[uuid.UUID]*Tracker
}

// NewRegistry creates a tracker registry. store may be nil to disable
// snapshot persistence.
func NewRegistry(clock clockwork.Clock, store snapshot.Store) *Registry {
	return &Registry{
		clock:    clock,
		store:    store,
		trackers: make(map[uuid.UUID]*Tracker),
	}
}

// SetExpiryFunc installs the expiry action. Wired after construction since
// the lifecycle manager and the registry reference each other.
func (r *Registry) SetExpiryFunc(fn ExpiryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// Get returns the user's tracker, or nil if none was created yet.
func (r *Registry) Get(userID uuid.UUID) *Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trackers[userID]
}

// GetOrCreate returns the user's tracker, creating and snapshot-restoring it
// on first use.
func (r *Registry) GetOrCreate(ctx context.Context, userID uuid.UUID) *Tracker {
	r.mu.RLock()
	t := r.trackers[userID]
	r.mu.RUnlock()
	if t != nil {
		return t
	}

	r.mu.Lock()
	if t = r.trackers[userID]; t == nil {
		t = New(userID, r.store)
		r.trackers[userID] = t
	}
	r.mu.Unlock()

	t.Restore(ctx)
	return t
}

// Users returns the ids of all users that currently have a tracker.
func (r *Registry) Users() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.trackers))
	for id := range r.trackers {
		users = append(users, id)
	}
	return users
}

// Remove drops the user's tracker, e.g. when the last connection goes away.
func (r *Registry) Remove(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, userID)
}

// RunTicker re-projects every tracker on a fixed cadence until ctx is done.
// The tick is pure computation against the wall clock; a missed or delayed
// tick costs nothing because the next one recomputes from scratch.
func (r *Registry) RunTicker(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("tracker re-projection ticker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("tracker re-projection ticker stopped")
			return
		case <-ticker.Chan():
			r.Tick(ctx)
		}
	}
}

// Tick runs one re-projection pass over all trackers. Exposed separately
// from RunTicker so tests can drive it deterministically.
func (r *Registry) Tick(ctx context.Context) {
	now := r.clock.Now()

	r.mu.RLock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	onExpire := r.onExpire
	r.mu.RUnlock()

	for _, t := range trackers {
		proj, ok := t.Reproject(now)
		if !ok || !proj.Expired {
			continue
		}

		state := t.State()
		if state.TrackedSessionID == nil {
			continue
		}
		sessionID := *state.TrackedSessionID

		if onExpire != nil && t.FireExpiry(sessionID) {
			log.Info().
				Str("user_id", t.UserID().String()).
				Str("session_id", sessionID.String()).
				Msg("timer expired, triggering completion")
			onExpire(ctx, t.UserID(), sessionID)
		}
	}
}
