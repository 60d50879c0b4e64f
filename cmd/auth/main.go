package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/thavalon-backend/internal/app/auth"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
)

func main() {
	utils.LoadEnv()
	log := utils.NewLogger("auth")
	port := utils.GetEnvOr("AUTH_PORT", "8081")
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a := auth.NewAuthServer(port, []byte(secret), log)
	if err := a.Start(ctx); err != nil {
		log.WithError(err).Fatal("auth server stopped")
	}
}
