package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/config"
)

const redisDialTimeout = 2 * time.Second

// Redis is the shared string cache used for remote domain-id lookups.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client for cfg. It returns nil when no address is configured and every
// method tolerates a nil receiver. An unreachable server is logged, not fatal: callers treat
// cache errors as misses.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; shared cache disabled")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisDialTimeout,
		WriteTimeout: redisDialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity. A disabled client reports healthy.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Ping(ctx).Err()
}

var errRedisDisabled = errors.New("redis client not configured")

// GetString reads key. A missing key is reported as found=false with no error.
func (r *Redis) GetString(ctx context.Context, key string) (string, bool, error) {
	if r == nil || r.Client == nil {
		return "", false, errRedisDisabled
	}
	val, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetString stores key with a TTL.
func (r *Redis) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	if r == nil || r.Client == nil {
		return errRedisDisabled
	}
	return r.Client.Set(ctx, key, value, ttl).Err()
}
