package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mkessler12/focusflow/go/internal/focus"
	"github.com/mkessler12/focusflow/go/internal/focus/feed"
	"github.com/mkessler12/focusflow/go/internal/focus/gateway"
	"github.com/mkessler12/focusflow/go/internal/focus/tracker"
	"github.com/mkessler12/focusflow/go/internal/snapshot"
	"github.com/mkessler12/focusflow/go/internal/stats"
	"github.com/mkessler12/focusflow/go/internal/tasks"
	"github.com/redis/go-redis/v9"
)

type Services struct {
	Focus    *focus.App
	Gateway  *gateway.Service
	Trackers *tracker.Registry
	Tasks    *tasks.Handler
	Stats    *stats.Handler
}

func setupServices(pool *pgxpool.Pool, config *Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Gateway layer

	store, err := setupSnapshotStore(config)
	if err != nil {
		return nil, err
	}

	registry := tracker.NewRegistry(clock, store)

	focusRepo := focus.NewRepository(pool)
	focusApp := focus.NewApp(focusRepo, registry, clock)

	// The ticker's expiry path completes sessions through the same app
	// the HTTP handlers use
	registry.SetExpiryFunc(focusApp.ExpireSession)

	reconciler := feed.NewReconciler(registry, focusApp, clock)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.FeedConfig.URL = getEnv("NATS_URL", gatewayConfig.FeedConfig.URL)
	if config.Feed.URL != "" {
		gatewayConfig.FeedConfig.URL = config.Feed.URL
	}
	if config.Feed.Stream != "" {
		gatewayConfig.FeedConfig.StreamName = config.Feed.Stream
	}
	if config.Feed.Consumer != "" {
		gatewayConfig.FeedConfig.ConsumerName = config.Feed.Consumer
	}
	if config.Feed.SubjectFilter != "" {
		gatewayConfig.FeedConfig.SubjectFilter = config.Feed.SubjectFilter
	}

	focusGateway, err := gateway.NewService(gatewayConfig, focusApp, focusRepo, registry, reconciler)
	if err != nil {
		return nil, fmt.Errorf("failed to create focus gateway: %w", err)
	}

	tasksRepo := tasks.NewRepository(pool)
	tasksApp := tasks.NewApp(tasksRepo, clock)
	tasksHandler := tasks.NewHandler(tasksApp)

	statsRepo := stats.NewRepository(pool)
	statsHandler := stats.NewHandler(statsRepo, clock)

	return &Services{
		Focus:    focusApp,
		Gateway:  focusGateway,
		Trackers: registry,
		Tasks:    tasksHandler,
		Stats:    statsHandler,
	}, nil
}

func setupSnapshotStore(config *Config) (snapshot.Store, error) {
	switch config.Snapshot.Backend {
	case "", "memory":
		return snapshot.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     getEnv("REDIS_ADDR", config.Snapshot.RedisAddr),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       config.Snapshot.RedisDB,
		})
		return snapshot.NewRedisStore(snapshot.RedisConfig{Client: client})
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", config.Snapshot.Backend)
	}
}
