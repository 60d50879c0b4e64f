package transport

import (
	"context"
	"fmt"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
)

// Bus groups the producers and consumers a service uses under typed names.
type Bus struct {
	messageGroupConsumers   map[MessageGroupConsumerType]MessageGroupConsumer
	dynamicMessageProducers map[DynamicMessageProducerType]DynamicMessageProducer
	messageProducers        map[MessageProducerType]MessageProducer
}

func NewBus() *Bus {
	return &Bus{}
}

func genericAdd[K comparable, V any](m *map[K]V, key K, value V) {
	if *m == nil {
		*m = make(map[K]V)
	}
	(*m)[key] = value
}

func (m *Bus) AddMessageGroupConsumer(t MessageGroupConsumerType, consumer MessageGroupConsumer) {
	genericAdd(&m.messageGroupConsumers, t, consumer)
}

func (m *Bus) AddDynamicMessageProducer(t DynamicMessageProducerType, producer DynamicMessageProducer) {
	genericAdd(&m.dynamicMessageProducers, t, producer)
}

func (m *Bus) AddMessageProducer(t MessageProducerType, producer MessageProducer) {
	genericAdd(&m.messageProducers, t, producer)
}

func (m *Bus) Send(ctx context.Context, t MessageProducerType, msg any) error {
	p, ok := m.messageProducers[t]
	if !ok {
		return fmt.Errorf("no message producer registered for %s", t)
	}
	return p.Send(ctx, msg)
}

func (m *Bus) SendTo(ctx context.Context, t DynamicMessageProducerType, recipient uuidstring.ID, msg any) error {
	p, ok := m.dynamicMessageProducers[t]
	if !ok {
		return fmt.Errorf("no dynamic message producer registered for %s", t)
	}
	return p.SendTo(ctx, recipient, msg)
}

// StartReceiving panics on an unregistered consumer type; buses are wired
// once at startup.
func (m *Bus) StartReceiving(ctx context.Context, t MessageGroupConsumerType) (<-chan WrappedConsumeMsg, <-chan error) {
	c, ok := m.messageGroupConsumers[t]
	if !ok {
		panic(fmt.Sprintf("no message group consumer registered for %s", t))
	}
	return c.StartReceiving(ctx)
}

func (m *Bus) AckMessage(ctx context.Context, t MessageGroupConsumerType, msgId string) error {
	c, ok := m.messageGroupConsumers[t]
	if !ok {
		return fmt.Errorf("no message group consumer registered for %s", t)
	}
	return c.AckMessage(ctx, msgId)
}
