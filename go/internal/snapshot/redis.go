package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots in Redis so they survive process restarts and
// are shared across gateway nodes. Entries expire on their own; a stale
// snapshot is corrected by the authoritative resync anyway.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Client    *redis.Client
	KeyPrefix string        // default "focusflow:tracker:"
	TTL       time.Duration // default 24h
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "focusflow:tracker:"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}

	return &RedisStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, userID uuid.UUID, data []byte) error {
	if err := s.client.Set(ctx, s.key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) key(userID uuid.UUID) string {
	return s.keyPrefix + userID.String()
}
