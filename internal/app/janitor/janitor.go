// Package janitor returns stream entries held by dead consumers to their
// stream.
//
// A consumer that stops without acking (a crashed lobby, a dropped socket)
// leaves entries pending under its name, and consumers only read new
// entries. The janitor re-adds those entries as new ones, acks the stale
// copies and removes the idle consumer from its group.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bkohler93/thavalon-backend/internal/shared/utils"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils/rediskeys"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCleanupFrequency  = 30 * time.Second
	DefaultAllowableIdleTime = 2 * time.Minute

	cleanupDuration = 10 * time.Second
	pendingBatch    = 100
	scanBatch       = 100
)

type Janitor struct {
	rdb               *redis.Client
	cleanupFrequency  time.Duration
	allowableIdleTime time.Duration
	log               *logrus.Entry
}

func New(rdb *redis.Client, cleanupFrequency, allowableIdleTime time.Duration, log *logrus.Entry) *Janitor {
	return &Janitor{
		rdb:               rdb,
		cleanupFrequency:  cleanupFrequency,
		allowableIdleTime: allowableIdleTime,
		log:               log,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	t := time.NewTicker(j.cleanupFrequency)
	defer t.Stop()
	j.log.Info("janitor started")
	for {
		select {
		case <-t.C:
			innerCtx, cancel := context.WithTimeout(ctx, cleanupDuration)
			j.Cleanup(innerCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Cleanup sweeps the lobby stream and every player stream once.
func (j *Janitor) Cleanup(ctx context.Context) {
	if err := j.CleanupStream(ctx, rediskeys.LobbyServerMessageStream); err != nil {
		j.log.WithError(err).Warn("failed to clean lobby stream")
	}

	streams, err := j.playerStreams(ctx)
	if err != nil {
		j.log.WithError(err).Warn("failed to list player streams")
		return
	}
	utils.SliceForeachContext(ctx, streams, func(ctx context.Context, stream string) {
		if err := j.CleanupStream(ctx, stream); err != nil {
			j.log.WithError(err).WithField("stream", stream).Warn("failed to clean player stream")
		}
	})
}

func (j *Janitor) playerStreams(ctx context.Context) ([]string, error) {
	var (
		streams []string
		cursor  uint64
	)
	for {
		keys, next, err := j.rdb.Scan(ctx, cursor, rediskeys.PlayerClientMessageStreamPattern, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		streams = append(streams, keys...)
		if next == 0 {
			return streams, nil
		}
		cursor = next
	}
}

func (j *Janitor) CleanupStream(ctx context.Context, stream string) error {
	groups, err := j.rdb.XInfoGroups(ctx, stream).Result()
	if err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("failed to list groups of %s - %w", stream, err)
	}
	for _, g := range groups {
		if err := j.CleanupConsumerGroup(ctx, stream, g.Name); err != nil {
			return err
		}
	}
	return nil
}

// CleanupConsumerGroup requeues the pending entries of every consumer idle
// for longer than the allowable idle time, then deletes that consumer.
func (j *Janitor) CleanupConsumerGroup(ctx context.Context, stream, group string) error {
	consumers, err := j.rdb.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return fmt.Errorf("failed to get info on %s consumer group - %w", group, err)
	}

	for _, c := range consumers {
		if c.Idle < j.allowableIdleTime {
			continue
		}
		log := j.log.WithFields(logrus.Fields{"stream": stream, "group": group, "consumer": c.Name})
		if c.Pending > 0 {
			n, err := j.requeuePending(ctx, stream, group, c.Name)
			if err != nil {
				return fmt.Errorf("failed to requeue entries of %s - %w", c.Name, err)
			}
			log.WithField("requeued", n).Info("requeued entries of idle consumer")
		}
		if err := j.rdb.XGroupDelConsumer(ctx, stream, group, c.Name).Err(); err != nil {
			return fmt.Errorf("failed to delete %s from %s - %w", c.Name, group, err)
		}
		log.Debug("deleted idle consumer")
	}
	return nil
}

func (j *Janitor) requeuePending(ctx context.Context, stream, group, consumer string) (int, error) {
	requeued := 0
	for {
		pending, err := j.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream:   stream,
			Group:    group,
			Start:    "-",
			End:      "+",
			Count:    pendingBatch,
			Consumer: consumer,
		}).Result()
		if err != nil {
			return requeued, err
		}
		if len(pending) == 0 {
			return requeued, nil
		}

		for _, p := range pending {
			entries, err := j.rdb.XRangeN(ctx, stream, p.ID, p.ID, 1).Result()
			if err != nil {
				return requeued, err
			}
			_, err = j.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				// a trimmed entry has nothing left to requeue, only the ack
				if len(entries) == 1 {
					pipe.XAdd(ctx, &redis.XAddArgs{
						Stream: stream,
						ID:     "*",
						Values: entries[0].Values,
					})
				}
				pipe.XAck(ctx, stream, group, p.ID)
				pipe.XDel(ctx, stream, p.ID)
				return nil
			})
			if err != nil {
				return requeued, err
			}
			if len(entries) == 1 {
				requeued++
			}
		}
	}
}

func isNoSuchKey(err error) bool {
	return errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "no such key")
}
