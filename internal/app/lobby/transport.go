package lobby

import (
	"context"

	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/internal/shared/transport"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

const (
	ServerMessageConsumer transport.MessageGroupConsumerType   = "ServerMessageConsumer"
	ClientMessageProducer transport.DynamicMessageProducerType = "ClientMessageProducer"
)

type TransportBus struct {
	transportBus *transport.Bus
}

func NewTransportBus(serverMessageConsumer transport.MessageGroupConsumer, clientMessageProducer transport.DynamicMessageProducer) *TransportBus {
	b := &TransportBus{
		transportBus: transport.NewBus(),
	}
	b.transportBus.AddMessageGroupConsumer(ServerMessageConsumer, serverMessageConsumer)
	b.transportBus.AddDynamicMessageProducer(ClientMessageProducer, clientMessageProducer)
	return b
}

func (b *TransportBus) StartReceivingServerMessages(ctx context.Context) (<-chan transport.WrappedConsumeMsg, <-chan error) {
	return b.transportBus.StartReceiving(ctx, ServerMessageConsumer)
}

func (b *TransportBus) AckServerMessage(ctx context.Context, id string) error {
	return b.transportBus.AckMessage(ctx, ServerMessageConsumer, id)
}

func (b *TransportBus) SendToClient(ctx context.Context, id uuidstring.ID, r response.Response) error {
	return b.transportBus.SendTo(ctx, ClientMessageProducer, id, r)
}
