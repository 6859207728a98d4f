package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Broadcaster pushes reconciled feed events out to connected clients.
type Broadcaster interface {
	BroadcastEnvelope(env *Envelope)
}

// ConsumerConfig holds configuration for the JetStream feed consumer.
type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string        // e.g. "focus.sessions.>"
	MaxDeliver    int           // max delivery attempts
	AckWait       time.Duration // how long to wait for ack
	MaxAckPending int           // max messages pending ack
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default feed consumer configuration.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "FOCUS_SESSIONS",
		ConsumerName:  "focus-gateway",
		SubjectFilter: "focus.sessions.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1, // infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Consumer consumes the per-user session change feed from JetStream,
// reconciles each event into the trackers, then broadcasts it to clients.
// Delivery is at-least-once; idempotence lives in the reconciler.
type Consumer struct {
	reconciler  *Reconciler
	broadcaster Broadcaster // optional
	nc          *nats.Conn
	js          jetstream.JetStream
	consumer    jetstream.Consumer
	config      ConsumerConfig
}

// NewConsumer connects to NATS and ensures the durable consumer exists.
func NewConsumer(reconciler *Reconciler, broadcaster Broadcaster, config ConsumerConfig) (*Consumer, error) {
	c := &Consumer{
		reconciler:  reconciler,
		broadcaster: broadcaster,
		config:      config,
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected, resyncing trackers")
			// Events may have been missed during the gap. The authoritative
			// re-read covers them before the feed is trusted again.
			c.reconciler.ResyncTracked(context.Background())
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	c.nc = nc
	c.js = js

	if err := c.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return c, nil
}

// ensureConsumer creates or gets the durable JetStream consumer.
func (c *Consumer) ensureConsumer(ctx context.Context) error {
	stream, err := c.js.Stream(ctx, c.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          c.config.ConsumerName,
		Durable:       c.config.ConsumerName,
		Description:   "Focus session feed consumer",
		FilterSubject: c.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.config.MaxDeliver,
		AckWait:       c.config.AckWait,
		MaxAckPending: c.config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, c.config.ConsumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("created JetStream consumer")
	} else {
		log.Info().
			Str("consumer", c.config.ConsumerName).
			Str("stream", c.config.StreamName).
			Msg("using existing JetStream consumer")
	}

	c.consumer = consumer
	return nil
}

// Start resyncs the tracked users, then consumes feed events until ctx is
// done.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", c.config.ConsumerName).
		Str("stream", c.config.StreamName).
		Msg("starting feed consumer")

	// One-time authoritative read before trusting the feed.
	c.reconciler.ResyncTracked(ctx)

	messageCh := make(chan jetstream.Msg, 100)

	consumeCtx, err := c.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("feed consumer shutting down")
			return nil
		case msg := <-messageCh:
			if err := c.processMessage(ctx, msg); err != nil {
				log.Error().
					Err(err).
					Str("subject", msg.Subject()).
					Msg("failed to process feed event")
				if nakErr := msg.Nak(); nakErr != nil {
					log.Error().Err(nakErr).Msg("failed to NAK message")
				}
			} else {
				if ackErr := msg.Ack(); ackErr != nil {
					log.Error().Err(ackErr).Msg("failed to ACK message")
				}
			}
		}
	}
}

// processMessage reconciles a single feed event and fans it out.
func (c *Consumer) processMessage(ctx context.Context, msg jetstream.Msg) error {
	env, err := ParseEnvelope(msg.Data())
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", env.EventID.String()).
		Str("user_id", env.UserID.String()).
		Str("type", string(env.Type)).
		Str("subject", msg.Subject()).
		Msg("processing feed event")

	if err := c.reconciler.HandleEvent(ctx, env); err != nil {
		return fmt.Errorf("reconcile event: %w", err)
	}

	if c.broadcaster != nil {
		c.broadcaster.BroadcastEnvelope(env)
	}
	return nil
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop() error {
	log.Info().Msg("stopping feed consumer")
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
