package gateway

import (
	"time"

	"github.com/mkessler12/focusflow/go/internal/focus/feed"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
)

// ServerMessageType identifies a message pushed to a connected client.
type ServerMessageType string

const (
	MessageTimerState    ServerMessageType = "timer_state"
	MessageSessionChange ServerMessageType = "session_change"
)

// ServerMessage is the wire format sent over the WebSocket. Exactly one of
// State or Change is set, depending on Type.
type ServerMessage struct {
	Type   ServerMessageType   `json:"type"`
	State  *tracker.TimerState `json:"state,omitempty"`
	Change *feed.Envelope      `json:"change,omitempty"`
	SentAt time.Time           `json:"sent_at"`
}

// NewStateMessage wraps a timer state for delivery.
func NewStateMessage(state tracker.TimerState, now time.Time) *ServerMessage {
	return &ServerMessage{
		Type:   MessageTimerState,
		State:  &state,
		SentAt: now,
	}
}

// NewChangeMessage wraps a session change envelope for delivery.
func NewChangeMessage(env *feed.Envelope, now time.Time) *ServerMessage {
	return &ServerMessage{
		Type:   MessageSessionChange,
		Change: env,
		SentAt: now,
	}
}
