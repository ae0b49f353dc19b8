package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"edu-crm/internal/calls"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testRedis uses an in-process miniredis, or a real Redis when
// LEDGER_TEST_REDIS_ADDR is set.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisStore_MergeAndSubscribe(t *testing.T) {
	rdb := testRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()
	sid := "CA" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), recordKey(sid)) })

	if _, err := s.UpsertStatus(ctx, sid, StatusUpdate{Status: calls.CallStatusRinging, From: "+1", To: "+2"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	sub, err := s.Subscribe(ctx, sid)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	if snap := recv(t, sub); snap.Status != calls.CallStatusRinging {
		t.Fatalf("expected snapshot, got %+v", snap)
	}

	rec, err := s.RecordRecording(ctx, sid, RecordingUpdate{Status: "completed", URL: "https://example.com/r", Sid: "RE1"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Status != calls.CallStatusRinging || rec.From != "+1" {
		t.Fatalf("merge clobbered fields: %+v", rec)
	}
	if pushed := recv(t, sub); pushed.RecordingSid != "RE1" || pushed.To != "+2" {
		t.Fatalf("unexpected push %+v", pushed)
	}
}

func TestRedisStore_GetMissing(t *testing.T) {
	s := NewRedisStore(testRedis(t))
	if _, err := s.Get(context.Background(), "CA"+uuid.NewString()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpsertStatus(context.Background(), "", StatusUpdate{Status: calls.CallStatusRinging}); err != ErrInvalidKey {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestRedisStore_OwnerAndFlagsAcrossWrites(t *testing.T) {
	rdb := testRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()
	sid := "CA" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), recordKey(sid)) })

	if _, err := s.UpsertStatus(ctx, sid, StatusUpdate{Status: calls.CallStatusInProgress, UserID: "sp-1", ProspectID: "p1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, err := s.UpsertStatus(ctx, sid, StatusUpdate{Status: calls.CallStatusCompleted, DurationSeconds: 42})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if rec.UserID != "sp-1" || rec.ProspectID != "p1" {
		t.Fatalf("owner fields lost: %+v", rec)
	}
	if rec.IsAnswerEvent || !rec.IsCallEnded || rec.DurationSeconds != 42 {
		t.Fatalf("unexpected flags: %+v", rec)
	}

	got, err := s.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != rec.UserID || got.Status != calls.CallStatusCompleted || got.UpdatedAt.IsZero() {
		t.Fatalf("get disagrees with merge: %+v vs %+v", got, rec)
	}
}
