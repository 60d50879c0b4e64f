package transport

import (
	"context"
	"encoding/json"

	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

type MessageProducerType string
type MessageProducer interface {
	Send(ctx context.Context, msg any) error
}
type MessageProducerBuilderFunc = func() MessageProducer

type DynamicMessageProducerType string
type DynamicMessageProducer interface {
	SendTo(ctx context.Context, recipientId uuidstring.ID, msg any) error
}

// EncodePayload turns msg into the bytes stored in a stream entry. Responses
// go through response.Encode so every variant keeps its full key set; raw
// bytes pass through untouched.
func EncodePayload(msg any) ([]byte, error) {
	switch m := msg.(type) {
	case response.Response:
		return response.Encode(m)
	case json.RawMessage:
		return m, nil
	case []byte:
		return m, nil
	default:
		return json.Marshal(msg)
	}
}

func xadd(ctx context.Context, rdb *redis.Client, stream string, msg any) error {
	data, err := EncodePayload(msg)
	if err != nil {
		return err
	}
	return rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			payloadField: data,
		},
	}).Err()
}

type RedisDynamicMessageProducer struct {
	rdb    *redis.Client
	stream func(uuidstring.ID) string
}

func NewRedisDynamicMessageProducer(rdb *redis.Client, streamNameFunc func(uuidstring.ID) string) *RedisDynamicMessageProducer {
	return &RedisDynamicMessageProducer{
		rdb:    rdb,
		stream: streamNameFunc,
	}
}

func (r *RedisDynamicMessageProducer) SendTo(ctx context.Context, recipientId uuidstring.ID, msg any) error {
	return xadd(ctx, r.rdb, r.stream(recipientId), msg)
}

type RedisMessageProducer struct {
	rdb    *redis.Client
	stream string
}

func NewRedisMessageProducer(rdb *redis.Client, stream string) *RedisMessageProducer {
	return &RedisMessageProducer{
		rdb:    rdb,
		stream: stream,
	}
}

func (r *RedisMessageProducer) Send(ctx context.Context, msg any) error {
	return xadd(ctx, r.rdb, r.stream, msg)
}
