package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisConfigDefaults(t *testing.T) {
	c := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if c.PoolSize != 20 || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestRedisHealthCheckNilClient(t *testing.T) {
	if err := RedisHealthCheck(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestAcquireConcurrencyCapValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if _, _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k", "tok"); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func testRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestConcurrencyCapBoundsHolders(t *testing.T) {
	_, rdb := testRedis(t)
	ctx := context.Background()

	first, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); err != nil || !ok {
		t.Fatalf("second acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); err != nil || ok {
		t.Fatalf("third acquire should be rejected: ok=%v err=%v", ok, err)
	}

	if err := ReleaseConcurrencyCap(ctx, rdb, "cap", first); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestConcurrencyCapIgnoresUnknownRelease(t *testing.T) {
	_, rdb := testRedis(t)
	ctx := context.Background()

	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 1, time.Minute); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if err := ReleaseConcurrencyCap(ctx, rdb, "cap", "not-a-holder"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := AcquireConcurrencyCap(ctx, rdb, "cap", 1, time.Minute); ok {
		t.Fatalf("unknown token must not free a slot")
	}
}

func TestConcurrencyCapExpiresOnlyStaleHolders(t *testing.T) {
	_, rdb := testRedis(t)
	ctx := context.Background()

	// A holder that never releases.
	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, 50*time.Millisecond); err != nil || !ok {
		t.Fatalf("leaked acquire: ok=%v err=%v", ok, err)
	}
	// A live holder with a long lease taken later.
	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); err != nil || !ok {
		t.Fatalf("live acquire: ok=%v err=%v", ok, err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, ok, err := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); err != nil || !ok {
		t.Fatalf("expired slot should be reclaimed: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := AcquireConcurrencyCap(ctx, rdb, "cap", 2, time.Minute); ok {
		t.Fatalf("live holder's slot must still count")
	}
	if n := rdb.ZCard(ctx, "cap").Val(); n != 2 {
		t.Fatalf("expected 2 holders, got %d", n)
	}
}
