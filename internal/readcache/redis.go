package readcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "embodiedpulse:read:"

// Redis is the shared-cache backend used when several replicas should
// serve the same cached pages. Redis failures degrade to a plain
// fill; the read path never breaks because the cache is down.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects the Redis backend.
func NewRedis(addr string, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Ping verifies the connection at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// GetOrFill implements Cache.
func (r *Redis) GetOrFill(ctx context.Context, key string, force bool, fill FillFunc) ([]byte, bool, error) {
	fullKey := redisKeyPrefix + key
	if !force {
		payload, err := r.client.Get(ctx, fullKey).Bytes()
		if err == nil {
			return payload, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	payload, err := fill(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := r.client.Set(ctx, fullKey, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache write failed", zap.String("key", key), zap.Error(err))
	}
	return payload, false, nil
}
