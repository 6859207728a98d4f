package feed

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Lifecycle defines what the reconciler needs from the session lifecycle
// manager.
type Lifecycle interface {
	CompleteSession(ctx context.Context, userID uuid.UUID) (*models.FocusSession, error)
	Resync(ctx context.Context, userID uuid.UUID) (tracker.TimerState, error)
}

// Reconciler folds change-feed events into the per-user trackers. Handling
// must stay idempotent: the feed is at-least-once and a reconnect can
// redeliver events the trackers already applied.
type Reconciler struct {
	trackers  *tracker.Registry
	lifecycle Lifecycle
	clock     clockwork.Clock
}

// NewReconciler creates a feed reconciler.
func NewReconciler(trackers *tracker.Registry, lifecycle Lifecycle, clock clockwork.Clock) *Reconciler {
	return &Reconciler{
		trackers:  trackers,
		lifecycle: lifecycle,
		clock:     clock,
	}
}

// HandleEvent applies one feed event to the owning user's tracker.
//
//   - INSERT active: adopt as the tracked session (another device started a
//     session, or the self-echo of a local start).
//   - UPDATE active: re-adopt, which re-projects (task reassignment or a
//     no-op self-echo).
//   - UPDATE/INSERT terminal or DELETE: clear the projection, but only when
//     the event's id matches the tracked session; anything else is stale or
//     belongs to a superseded session and is ignored.
//
// An adopted session already past its target triggers a completion, guarded
// to fire once per session.
func (r *Reconciler) HandleEvent(ctx context.Context, env *Envelope) error {
	t := r.trackers.GetOrCreate(ctx, env.UserID)

	switch env.Type {
	case ChangeInsert, ChangeUpdate:
		if env.New == nil {
			return fmt.Errorf("%s event without new record", env.Type)
		}
		if env.New.Status.IsTerminal() {
			if t.ClearIf(env.New.ID) {
				log.Debug().
					Str("session_id", env.New.ID.String()).
					Str("status", string(env.New.Status)).
					Msg("tracked session finalized remotely")
			}
			return nil
		}
		return r.adopt(ctx, t, env)

	case ChangeDelete:
		if env.Old == nil {
			return fmt.Errorf("DELETE event without old record")
		}
		t.ClearIf(env.Old.ID)
		return nil

	default:
		return fmt.Errorf("unknown change type: %s", env.Type)
	}
}

// Resync re-derives a user's tracker from the authoritative record. Run
// before trusting the feed on (re)connection; everything missed while
// disconnected is covered by this single read.
func (r *Reconciler) Resync(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.lifecycle.Resync(ctx, userID); err != nil {
		return fmt.Errorf("resync user %s: %w", userID, err)
	}
	return nil
}

// ResyncTracked resyncs every user that has a tracker. Invoked after a feed
// reconnect, when an unknown number of events may have been missed.
func (r *Reconciler) ResyncTracked(ctx context.Context) {
	for _, userID := range r.trackers.Users() {
		if err := r.Resync(ctx, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("resync after reconnect failed")
		}
	}
}

func (r *Reconciler) adopt(ctx context.Context, t *tracker.Tracker, env *Envelope) error {
	proj := t.Adopt(env.New, r.clock.Now().UTC())
	if proj.Expired && t.FireExpiry(env.New.ID) {
		log.Info().
			Str("user_id", env.UserID.String()).
			Str("session_id", env.New.ID.String()).
			Msg("adopted session already expired, completing")
		if _, err := r.lifecycle.CompleteSession(ctx, env.UserID); err != nil {
			return fmt.Errorf("complete expired session: %w", err)
		}
	}
	return nil
}
