package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mkessler12/focusflow/go/internal/focus/feed"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/rs/zerolog/log"
)

// Service is the timer gateway: it owns the WebSocket fanout, the HTTP
// lifecycle API and the change-feed consumer that keeps trackers honest.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	sessionHandler    *SessionHandler
	finalizeHandler   *FinalizeHandler
	feedConsumer      *feed.Consumer
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	FeedConfig       feed.ConsumerConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		FeedConfig:       feed.DefaultConsumerConfig(),
	}
}

// NewService creates a new gateway service
func NewService(config Config, lifecycle Lifecycle, finalizer Finalizer, trackers *tracker.Registry, reconciler *feed.Reconciler) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	s := &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, lifecycle, trackers),
		sessionHandler:    NewSessionHandler(lifecycle),
		finalizeHandler:   NewFinalizeHandler(finalizer),
	}

	feedConsumer, err := feed.NewConsumer(reconciler, s, config.FeedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed consumer: %w", err)
	}
	s.feedConsumer = feedConsumer

	return s, nil
}

// Start begins the gateway service
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting focus gateway service")

	go s.connectionManager.Start(ctx)

	go func() {
		if err := s.feedConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("feed consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("focus gateway service shutting down")
	return s.Stop()
}

// Stop gracefully shuts down the gateway service
func (s *Service) Stop() error {
	if err := s.feedConsumer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop feed consumer")
	}

	log.Info().Msg("focus gateway service stopped")
	return nil
}

// RegisterRoutes registers the gateway HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.sessionHandler.RegisterSessionRoutes(mux)
	s.finalizeHandler.RegisterFinalizeRoutes(mux)
	log.Info().Msg("focus gateway routes registered")
}

// BroadcastEnvelope pushes a reconciled session change to the affected
// user's connections. Satisfies the feed consumer's broadcaster.
func (s *Service) BroadcastEnvelope(env *feed.Envelope) {
	s.connectionManager.BroadcastToUser(env.UserID, NewChangeMessage(env, time.Now()))
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "focus_gateway"
	stats["status"] = "running"
	return stats
}
