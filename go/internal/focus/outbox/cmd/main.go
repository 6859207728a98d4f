package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mkessler12/focusflow/go/internal/dbconfig"
	"github.com/mkessler12/focusflow/go/internal/focus/outbox"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Relay binary: drains the focus_outbox table onto the NATS change feed.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	subjectPrefix := getEnv("FEED_SUBJECT_PREFIX", "focus.sessions")
	healthAddr := getEnv("RELAY_HEALTH_ADDR", ":8091")

	dbCfg := dbconfig.NewConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, dbCfg.PoolDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Close()

	publisher, err := outbox.NewNATSPublisher(nc, subjectPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create publisher")
	}

	cfg := outbox.DefaultListenerConfig()
	cfg.DatabaseURL = dbCfg.DSN()

	repo := outbox.NewRepository(pool)
	listener, err := outbox.NewListener(repo, publisher, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create outbox listener")
	}

	go func() {
		if err := listener.Start(ctx); err != nil {
			log.Error().Err(err).Msg("outbox listener failed")
		}
	}()

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	go func() {
		if err := http.ListenAndServe(healthAddr, nil); err != nil {
			log.Error().Err(err).Msg("health server failed")
		}
	}()

	log.Info().
		Str("database", dbCfg.Database).
		Str("nats_url", natsURL).
		Str("subject_prefix", subjectPrefix).
		Msg("outbox relay running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down outbox relay")
	cancel()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
