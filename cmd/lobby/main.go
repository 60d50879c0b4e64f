package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bkohler93/thavalon-backend/internal/app/lobby"
	"github.com/bkohler93/thavalon-backend/internal/shared/transport"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils/rediskeys"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

func main() {
	utils.LoadEnv()
	log := utils.NewLogger("lobby")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	redisClient, err := redisutils.NewRedisClient(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	consumerName, err := os.Hostname()
	if err != nil {
		consumerName = uuidstring.NewID().String()
	}
	serverMsgConsumer, err := transport.NewRedisMessageGroupConsumer(ctx, redisClient,
		rediskeys.LobbyServerMessageStream,
		rediskeys.LobbyServerMessageCGroup,
		consumerName,
	)
	if err != nil {
		log.WithError(err).Fatal("failed to create lobby consumer")
	}
	clientMsgProducer := transport.NewRedisDynamicMessageProducer(redisClient, rediskeys.PlayerClientMessageStream)

	l := lobby.New(
		lobby.NewRedisRosterStore(redisClient),
		lobby.NewTransportBus(serverMsgConsumer, clientMsgProducer),
		log,
	)
	if err := l.Start(ctx); err != nil {
		log.WithError(err).Fatal("lobby stopped")
	}
}
