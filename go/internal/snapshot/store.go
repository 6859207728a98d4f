// Package snapshot persists per-user timer state so a restarted process can
// show a plausible countdown before the authoritative resync lands. Snapshots
// are a display convenience, never a source of truth.
package snapshot

import (
	"context"

	"github.com/google/uuid"
)

// Store persists opaque timer-state snapshots keyed by user.
type Store interface {
	// Save stores the snapshot for a user, replacing any previous one.
	Save(ctx context.Context, userID uuid.UUID, data []byte) error

	// Load returns the stored snapshot, or nil when none exists.
	Load(ctx context.Context, userID uuid.UUID) ([]byte, error)

	// Clear removes the stored snapshot, if any.
	Clear(ctx context.Context, userID uuid.UUID) error
}
