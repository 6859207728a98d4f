package projection

import (
	"time"

	"github.com/mkessler12/focusflow/go/internal/models"
)

// Projection is the derived view of a running session at a single instant.
// It is recomputed from the immutable start timestamp and the wall clock on
// every reconciliation event and on every display tick. Nothing here is ever
// incremented, which keeps the displayed time correct through missed ticks,
// tab throttling and device sleep.
type Projection struct {
	Mode             models.SessionMode `json:"mode"`
	ElapsedSeconds   int                `json:"elapsed_seconds"`
	RemainingSeconds int                `json:"remaining_seconds"`
	DisplaySeconds   int                `json:"display_seconds"`
	Expired          bool               `json:"expired"`
}

// Project computes the projection for a session that started at start, as
// observed at now. A nil durationMinutes means chronometer mode (open-ended
// count-up); otherwise timer mode counting down from duration*60 seconds.
//
// Expired is only ever true in timer mode: the session has conceptually
// ended even though the authoritative record may still read active (the
// client slept or disconnected through expiry). Callers seeing Expired
// must trigger a completion.
func Project(start, now time.Time, durationMinutes *int) Projection {
	elapsed := ElapsedSeconds(start, now)

	if durationMinutes == nil {
		return Projection{
			Mode:           models.SessionModeChronometer,
			ElapsedSeconds: elapsed,
			DisplaySeconds: elapsed,
		}
	}

	remaining := *durationMinutes*60 - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return Projection{
		Mode:             models.SessionModeTimer,
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		DisplaySeconds:   remaining,
		Expired:          remaining == 0,
	}
}

// FromSession is Project applied to an authoritative record.
func FromSession(sess *models.FocusSession, now time.Time) Projection {
	return Project(sess.StartTime, now, sess.DurationMinutes)
}

// ElapsedSeconds returns floor((now - start) / 1s), clamped at zero so a
// skewed clock never produces a negative display.
func ElapsedSeconds(start, now time.Time) int {
	elapsed := int(now.Sub(start) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// FinalDurationMinutes returns the minutes to record when finalizing a
// session: ceil((now - start) / 1m).
func FinalDurationMinutes(start, now time.Time) int {
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	mins := int(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		mins++
	}
	return mins
}
