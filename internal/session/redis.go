package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// defaultKeyPrefix namespaces session keys in Redis.
const defaultKeyPrefix = "tenantgate:session:"

// redisRegistry is the Redis-backed session registry. Expiry is
// delegated to Redis TTLs, so Sweep is a no-op for this backend.
type redisRegistry struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string
}

// newRedisRegistry creates a Redis-backed registry.
func newRedisRegistry(cfg config.RedisConfig, logger observability.Logger) (*redisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}

	logger.Info("redis session registry initialized",
		observability.String("addr", cfg.Addr),
	)

	return &redisRegistry{
		logger:    logger,
		client:    client,
		keyPrefix: keyPrefix,
	}, nil
}

// Get returns the session for the given ID.
func (r *redisRegistry) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	if s.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}

	return &s, nil
}

// Put stores a session for its remaining lifetime.
func (r *redisRegistry) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.keyPrefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *redisRegistry) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis evicts expired sessions via key TTLs.
func (r *redisRegistry) Sweep(_ context.Context) (int, error) {
	return 0, nil
}

// Close closes the Redis connection.
func (r *redisRegistry) Close() error {
	return r.client.Close()
}

// Ensure redisRegistry implements Registry.
var _ Registry = (*redisRegistry)(nil)
