package gateway

import (
	"context"

	"github.com/bkohler93/thavalon-backend/internal/shared/message"
	"github.com/bkohler93/thavalon-backend/internal/shared/transport"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils/rediskeys"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/redis/go-redis/v9"
)

const (
	PlayerMessageConsumer transport.MessageGroupConsumerType = "PlayerMessageConsumer"
	LobbyMessageProducer  transport.MessageProducerType      = "LobbyMessageProducer"
)

type PlayerMessageConsumerBuilderFunc = func(ctx context.Context, playerID uuidstring.ID) (transport.MessageGroupConsumer, error)

type ClientTransportBusFactory struct {
	playerMsgConsumerBuilder PlayerMessageConsumerBuilderFunc
	lobbyMsgProducerBuilder  transport.MessageProducerBuilderFunc
}

func NewClientTransportBusFactory(playerMsgConsumerBuilder PlayerMessageConsumerBuilderFunc, lobbyMsgProducerBuilder transport.MessageProducerBuilderFunc) *ClientTransportBusFactory {
	return &ClientTransportBusFactory{
		playerMsgConsumerBuilder: playerMsgConsumerBuilder,
		lobbyMsgProducerBuilder:  lobbyMsgProducerBuilder,
	}
}

// NewRedisClientTransportBusFactory reads each player's outbound stream and
// writes client requests to the lobby stream. Every connection joins the
// player's group as a fresh consumer so a reconnect does not share a
// consumer name with the socket it replaced.
func NewRedisClientTransportBusFactory(rdb *redis.Client) *ClientTransportBusFactory {
	return NewClientTransportBusFactory(
		func(ctx context.Context, playerID uuidstring.ID) (transport.MessageGroupConsumer, error) {
			return transport.NewRedisMessageGroupConsumer(ctx, rdb,
				rediskeys.PlayerClientMessageStream(playerID),
				rediskeys.PlayerClientMessageCGroup(playerID),
				uuidstring.NewID().String(),
			)
		},
		func() transport.MessageProducer {
			return transport.NewRedisMessageProducer(rdb, rediskeys.LobbyServerMessageStream)
		},
	)
}

type ClientTransportBus struct {
	transportBus *transport.Bus
}

func (f *ClientTransportBusFactory) NewClientTransportBus(ctx context.Context, playerID uuidstring.ID) (*ClientTransportBus, error) {
	consumer, err := f.playerMsgConsumerBuilder(ctx, playerID)
	if err != nil {
		return nil, err
	}
	b := &ClientTransportBus{
		transportBus: transport.NewBus(),
	}
	b.transportBus.AddMessageGroupConsumer(PlayerMessageConsumer, consumer)
	b.transportBus.AddMessageProducer(LobbyMessageProducer, f.lobbyMsgProducerBuilder())
	return b, nil
}

func (b *ClientTransportBus) StartReceivingPlayerMessages(ctx context.Context) (<-chan transport.WrappedConsumeMsg, <-chan error) {
	return b.transportBus.StartReceiving(ctx, PlayerMessageConsumer)
}

func (b *ClientTransportBus) AckPlayerMessage(ctx context.Context, id string) error {
	return b.transportBus.AckMessage(ctx, PlayerMessageConsumer, id)
}

func (b *ClientTransportBus) SendLobbyMessage(ctx context.Context, env message.Envelope) error {
	return b.transportBus.Send(ctx, LobbyMessageProducer, env)
}
