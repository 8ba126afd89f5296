package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trustvibe/escrow-service/internal/domain"
	"github.com/trustvibe/escrow-service/internal/ports"
)

const configCacheKey = "escrow:platform_config"

// RedisConfigStore caches the platform config document in Redis in front of
// the durable store. A cache failure is never fatal: reads fall through to
// the inner store and writes invalidate on a best-effort basis.
type RedisConfigStore struct {
	client *redis.Client
	inner  ports.PlatformConfigStore
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisConfigStore(client *redis.Client, inner ports.PlatformConfigStore, ttl time.Duration, logger *slog.Logger) *RedisConfigStore {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisConfigStore{client: client, inner: inner, ttl: ttl, logger: logger}
}

func (s *RedisConfigStore) Snapshot(ctx context.Context) (domain.PlatformConfig, error) {
	raw, err := s.client.Get(ctx, configCacheKey).Result()
	if err == nil {
		var cfg domain.PlatformConfig
		if unmarshalErr := json.Unmarshal([]byte(raw), &cfg); unmarshalErr == nil {
			return cfg, nil
		}
		// A corrupt cache entry falls through to the durable store.
		_ = s.client.Del(ctx, configCacheKey).Err()
	} else if err != redis.Nil {
		s.logger.Warn("config cache read failed", slog.String("error", err.Error()))
	}

	cfg, err := s.inner.Snapshot(ctx)
	if err != nil {
		return domain.PlatformConfig{}, err
	}

	if encoded, marshalErr := json.Marshal(cfg); marshalErr == nil {
		if setErr := s.client.Set(ctx, configCacheKey, encoded, s.ttl).Err(); setErr != nil {
			s.logger.Warn("config cache write failed", slog.String("error", setErr.Error()))
		}
	}
	return cfg, nil
}

func (s *RedisConfigStore) Put(ctx context.Context, cfg domain.PlatformConfig) error {
	if err := s.inner.Put(ctx, cfg); err != nil {
		return err
	}
	if err := s.client.Del(ctx, configCacheKey).Err(); err != nil {
		s.logger.Warn("config cache invalidation failed", slog.String("error", err.Error()))
	}
	return nil
}
