package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a focus session.
type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "active"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusInterrupted SessionStatus = "interrupted"
)

// IsTerminal reports whether the status is a finalized state.
// Once a session leaves active it never returns.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusInterrupted
}

// SessionMode defines how a session measures time.
type SessionMode string

const (
	// SessionModeTimer counts down toward a fixed target duration.
	SessionModeTimer SessionMode = "timer"
	// SessionModeChronometer counts up with no target, open-ended.
	SessionModeChronometer SessionMode = "chronometer"
)

// FocusSession is the server-authoritative record for a work interval.
// StartTime is set once at creation and never changes; all time math
// derives from it. EndTime and the final DurationMinutes are written
// exactly once by whichever actor wins the transition out of active.
type FocusSession struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	TaskID          *uuid.UUID    `json:"task_id,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	Status          SessionStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Mode returns timer when a target duration is set, chronometer otherwise.
// Only meaningful while the session is active; finalization rewrites
// DurationMinutes with the actual elapsed minutes.
func (s *FocusSession) Mode() SessionMode {
	if s.DurationMinutes != nil {
		return SessionModeTimer
	}
	return SessionModeChronometer
}
