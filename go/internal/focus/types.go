package focus

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNoActiveSession is returned when an operation requires a tracked
// active session and none exists.
var ErrNoActiveSession = errors.New("no active session")

// ErrSessionNotFound is returned when a session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// StartSessionRequest represents the data needed to start a focus session.
// A nil DurationMinutes starts a chronometer (open-ended) session.
type StartSessionRequest struct {
	UserID          uuid.UUID  `json:"user_id"`
	TaskID          *uuid.UUID `json:"task_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
}
