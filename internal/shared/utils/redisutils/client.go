package redisutils

import (
	"context"
	"os"

	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to REDIS_ADDR (localhost:6379 when unset) and
// pings it. Call utils.LoadEnv() first in dev/test environments.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     utils.GetEnvOr("REDIS_ADDR", "localhost:6379"),
		DB:       0,
		Password: os.Getenv("REDIS_PW"),
		Protocol: 2,
		PoolSize: 20,
	})

	_, err := rdb.Ping(ctx).Result()
	return rdb, err
}
