package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkessler12/focusflow/go/internal/models"
)

// ChangeType mirrors the kind of mutation applied to the authoritative
// session record.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Envelope is the wire format of one change-feed event. Delivery is ordered
// per user and at-least-once; consumers must tolerate redelivery.
type Envelope struct {
	EventID    uuid.UUID            `json:"event_id"`
	Type       ChangeType           `json:"type"`
	UserID     uuid.UUID            `json:"user_id"`
	Old        *models.FocusSession `json:"old,omitempty"`
	New        *models.FocusSession `json:"new,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewInsert builds the envelope for a freshly created session record.
func NewInsert(sess *models.FocusSession, occurredAt time.Time) Envelope {
	return Envelope{
		EventID:    uuid.New(),
		Type:       ChangeInsert,
		UserID:     sess.UserID,
		New:        sess,
		OccurredAt: occurredAt,
	}
}

// NewUpdate builds the envelope for a mutated session record. old may be
// nil when the writer did not read the previous row version.
func NewUpdate(old, new *models.FocusSession, occurredAt time.Time) Envelope {
	return Envelope{
		EventID:    uuid.New(),
		Type:       ChangeUpdate,
		UserID:     new.UserID,
		Old:        old,
		New:        new,
		OccurredAt: occurredAt,
	}
}

// NewDelete builds the envelope for a removed session record.
func NewDelete(old *models.FocusSession, occurredAt time.Time) Envelope {
	return Envelope{
		EventID:    uuid.New(),
		Type:       ChangeDelete,
		UserID:     old.UserID,
		Old:        old,
		OccurredAt: occurredAt,
	}
}

// ParseEnvelope decodes an envelope from its JSON wire form.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal feed envelope: %w", err)
	}
	switch env.Type {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return nil, fmt.Errorf("unknown change type: %s", env.Type)
	}
	return &env, nil
}

// Subject returns the per-user NATS subject the envelope is published on.
func (e *Envelope) Subject(prefix string) string {
	return fmt.Sprintf("%s.%s", prefix, e.UserID)
}
