package outbox

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Publisher publishes an outbox event onto the change feed.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// NATSPublisher publishes feed events to a JetStream stream, one subject
// per user so per-user ordering holds.
type NATSPublisher struct {
	js            jetstream.JetStream
	subjectPrefix string
}

// NewNATSPublisher wraps an existing NATS connection. Stream provisioning
// is expected to exist already (see deploy scripts); publishing to a
// missing stream fails loudly rather than silently dropping events.
func NewNATSPublisher(nc *nats.Conn, subjectPrefix string) (*NATSPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &NATSPublisher{
		js:            js,
		subjectPrefix: subjectPrefix,
	}, nil
}

// Publish sends the event's payload (the feed envelope) to the user's
// subject. JetStream acks the publish, giving at-least-once delivery
// end to end.
func (p *NATSPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.UserID)

	if _, err := p.js.Publish(ctx, subject, event.Payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("subject", subject).
		Str("event_type", event.EventType).
		Msg("published feed event")

	return nil
}
