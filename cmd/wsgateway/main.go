package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bkohler93/thavalon-backend/internal/app/gateway"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils"
)

func main() {
	utils.LoadEnv()
	log := utils.NewLogger("wsgateway")
	port := utils.GetEnvOr("PORT", "8080")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	redisClient, err := redisutils.NewRedisClient(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	g := gateway.NewGateway(port, []byte(secret), gateway.NewRedisClientTransportBusFactory(redisClient), log)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		g.AllowOrigins(strings.Split(origins, ",")...)
	}
	if err := g.Start(ctx); err != nil {
		log.WithError(err).Fatal("gateway stopped")
	}
}
