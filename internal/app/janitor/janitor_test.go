package janitor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bkohler93/thavalon-backend/internal/shared/utils/redisutils/rediskeys"
	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const idle = 20 * time.Millisecond

func startup(t *testing.T) (*redis.Client, *Janitor, context.Context) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	return rdb, New(rdb, time.Hour, idle, logrus.NewEntry(log)), context.Background()
}

// strand leaves one entry pending under consumer "dead".
func strand(t *testing.T, rdb *redis.Client, ctx context.Context, stream, group, payload string) {
	t.Helper()
	if err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err(); err != nil {
		t.Fatalf("did not expect error creating group - %v", err)
	}
	if err := rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: map[string]any{"payload": payload}}).Err(); err != nil {
		t.Fatalf("did not expect error adding - %v", err)
	}
	res, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: "dead",
		Streams:  []string{stream, ">"},
		Count:    1,
	}).Result()
	if err != nil || len(res) != 1 || len(res[0].Messages) != 1 {
		t.Fatalf("expected to read one entry got %v (%v)", res, err)
	}
}

func consumerNames(t *testing.T, rdb *redis.Client, ctx context.Context, stream, group string) []string {
	t.Helper()
	consumers, err := rdb.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		t.Fatalf("did not expect error - %v", err)
	}
	var names []string
	for _, c := range consumers {
		names = append(names, c.Name)
	}
	return names
}

func TestCleanupConsumerGroup(t *testing.T) {
	t.Run("entries of an idle consumer are delivered again", func(t *testing.T) {
		rdb, j, ctx := startup(t)
		stream, group := rediskeys.LobbyServerMessageStream, rediskeys.LobbyServerMessageCGroup
		strand(t, rdb, ctx, stream, group, "hello")
		time.Sleep(2 * idle)

		if err := j.CleanupConsumerGroup(ctx, stream, group); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}

		if names := consumerNames(t, rdb, ctx, stream, group); len(names) != 0 {
			t.Errorf("expected idle consumer removed got %v", names)
		}

		res, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: "alive",
			Streams:  []string{stream, ">"},
			Count:    10,
		}).Result()
		if err != nil {
			t.Fatalf("expected the requeued entry got error - %v", err)
		}
		if len(res[0].Messages) != 1 || res[0].Messages[0].Values["payload"] != "hello" {
			t.Errorf("expected one requeued hello entry got %v", res[0].Messages)
		}
		if n, _ := rdb.XLen(ctx, stream).Result(); n != 1 {
			t.Errorf("expected the stale copy deleted got length %d", n)
		}
	})

	t.Run("recently active consumers are left alone", func(t *testing.T) {
		rdb, _, ctx := startup(t)
		log := logrus.New()
		log.SetOutput(io.Discard)
		j := New(rdb, time.Hour, time.Hour, logrus.NewEntry(log))

		stream, group := rediskeys.LobbyServerMessageStream, rediskeys.LobbyServerMessageCGroup
		strand(t, rdb, ctx, stream, group, "hello")

		if err := j.CleanupConsumerGroup(ctx, stream, group); err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		if names := consumerNames(t, rdb, ctx, stream, group); len(names) != 1 || names[0] != "dead" {
			t.Errorf("expected consumer kept got %v", names)
		}
	})
}

func TestCleanup(t *testing.T) {
	t.Run("player streams are swept", func(t *testing.T) {
		rdb, j, ctx := startup(t)
		id := uuidstring.NewID()
		stream, group := rediskeys.PlayerClientMessageStream(id), rediskeys.PlayerClientMessageCGroup(id)
		strand(t, rdb, ctx, stream, group, `{"type":"join"}`)
		time.Sleep(2 * idle)

		j.Cleanup(ctx)

		if names := consumerNames(t, rdb, ctx, stream, group); len(names) != 0 {
			t.Errorf("expected idle consumer removed got %v", names)
		}
		pending, err := rdb.XPending(ctx, stream, group).Result()
		if err != nil {
			t.Fatalf("did not expect error - %v", err)
		}
		if pending.Count != 0 {
			t.Errorf("expected nothing pending got %d", pending.Count)
		}
	})

	t.Run("a missing lobby stream is not an error", func(t *testing.T) {
		_, j, ctx := startup(t)
		if err := j.CleanupStream(ctx, rediskeys.LobbyServerMessageStream); err != nil {
			t.Errorf("did not expect error got %v", err)
		}
	})
}
