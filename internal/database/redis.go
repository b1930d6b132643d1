package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/ledgerbook/backend/internal/config"
	"github.com/ledgerbook/backend/internal/logger"
)

// OpenRedis returns a connected client, or nil when Redis is unreachable:
// the service runs without a cache in that case.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Get().WithError(err).Warn("Redis connection failed, continuing without Redis")
		rdb.Close()
		return nil
	}

	logger.Get().WithField("addr", cfg.Addr()).Info("Redis connection established")
	return rdb
}
