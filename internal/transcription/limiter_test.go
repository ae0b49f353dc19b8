package transcription

import (
	"context"
	"testing"
	"time"

	"edu-crm/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var _ queue.Slots = RedisLimiter{}

func TestRedisLimiter_SharesSlotsAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	newReplica := func() RedisLimiter {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return RedisLimiter{Client: rdb, Key: "transcription:inflight", Limit: 1, Lease: time.Minute}
	}
	a, b := newReplica(), newReplica()
	ctx := context.Background()

	tok, ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("replica a acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := b.Acquire(ctx); err != nil || ok {
		t.Fatalf("replica b should wait: ok=%v err=%v", ok, err)
	}
	if err := a.Release(ctx, tok); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, err := b.Acquire(ctx); err != nil || !ok {
		t.Fatalf("replica b acquire after release: ok=%v err=%v", ok, err)
	}
}
