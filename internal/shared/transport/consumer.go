package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type WrappedConsumeMsg struct {
	ID      string
	Payload []byte
}

type MessageGroupConsumerType string
type MessageGroupConsumer interface {
	StartReceiving(ctx context.Context) (<-chan WrappedConsumeMsg, <-chan error)
	AckMessage(ctx context.Context, msgId string) error
}

var (
	consumerBlockDuration = time.Second * 5
	consumerReadCount     = int64(10)
)

var ErrMalformedEntry = errors.New("stream entry has no payload field")

type RedisMessageGroupConsumer struct {
	rdb           *redis.Client
	stream        string
	consumerGroup string
	consumer      string
}

// NewRedisMessageGroupConsumer creates the consumer group (and the stream)
// if needed. The group starts at the beginning of the stream so entries
// written before the first reader connects are still delivered.
func NewRedisMessageGroupConsumer(ctx context.Context, rdb *redis.Client, stream, consumerGroup, consumer string) (*RedisMessageGroupConsumer, error) {
	err := rdb.XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("error creating consumer group %s on %s - %w", consumerGroup, stream, err)
	}
	return &RedisMessageGroupConsumer{
		rdb:           rdb,
		stream:        stream,
		consumerGroup: consumerGroup,
		consumer:      consumer,
	}, nil
}

func (mc *RedisMessageGroupConsumer) StartReceiving(ctx context.Context) (<-chan WrappedConsumeMsg, <-chan error) {
	msgCh := make(chan WrappedConsumeMsg)
	errCh := make(chan error, 1)

	go func() {
		defer close(msgCh)
		defer close(errCh)
		for {
			if ctx.Err() != nil {
				return
			}
			streamResults, err := mc.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    mc.consumerGroup,
				Consumer: mc.consumer,
				Streams:  []string{mc.stream, ">"},
				Count:    consumerReadCount,
				Block:    consumerBlockDuration,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				errCh <- fmt.Errorf("error reading from %s stream - %w", mc.stream, err)
				return
			}

			for _, s := range streamResults {
				for _, m := range s.Messages {
					data, ok := m.Values[payloadField].(string)
					if !ok {
						errCh <- fmt.Errorf("entry %s on %s - %w", m.ID, mc.stream, ErrMalformedEntry)
						return
					}
					select {
					case msgCh <- WrappedConsumeMsg{ID: m.ID, Payload: []byte(data)}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return msgCh, errCh
}

// AckMessage acknowledges and deletes the entry in one transaction.
func (mc *RedisMessageGroupConsumer) AckMessage(ctx context.Context, msgId string) error {
	_, err := mc.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, mc.stream, mc.consumerGroup, msgId)
		pipe.XDel(ctx, mc.stream, msgId)
		return nil
	})
	return err
}
