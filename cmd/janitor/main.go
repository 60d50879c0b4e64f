package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bkohler93/thavalon-backend/internal/app/janitor"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils"
)

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(utils.GetEnvOr(key, def.String()))
	if err != nil {
		return def
	}
	return d
}

func main() {
	utils.LoadEnv()
	log := utils.NewLogger("janitor")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	redisClient, err := redisutils.NewRedisClient(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	j := janitor.New(redisClient,
		durationEnv("JANITOR_FREQUENCY", janitor.DefaultCleanupFrequency),
		durationEnv("JANITOR_IDLE", janitor.DefaultAllowableIdleTime),
		log,
	)
	j.Start(ctx)
}
