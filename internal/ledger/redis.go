package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edu-crm/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each call as a hash at ledger:call:{sid} and publishes the
// merged record on ledger:call:{sid}:updates after every write.
type RedisStore struct {
	rdb   *redis.Client
	clock func() time.Time
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, clock: time.Now}
}

func recordKey(callSid string) string  { return "ledger:call:" + callSid }
func updatesKey(callSid string) string { return "ledger:call:" + callSid + ":updates" }

// mergeScript applies the field writes, then publishes the merged hash so
// subscribers never observe a partial write.
var mergeScript = redis.NewScript(`
-- KEYS[1] = record hash
-- KEYS[2] = updates channel
-- ARGV    = field, value, field, value, ...
redis.call('HSET', KEYS[1], unpack(ARGV))
local flat = redis.call('HGETALL', KEYS[1])
local obj = {}
for i = 1, #flat, 2 do
  obj[flat[i]] = flat[i + 1]
end
redis.call('PUBLISH', KEYS[2], cjson.encode(obj))
return flat
`)

func (s *RedisStore) UpsertStatus(ctx context.Context, callSid string, u StatusUpdate) (CallRecord, error) {
	if callSid == "" {
		return CallRecord{}, ErrInvalidKey
	}
	return s.merge(ctx, callSid, statusFields(u, s.clock()))
}

func (s *RedisStore) RecordRecording(ctx context.Context, callSid string, u RecordingUpdate) (CallRecord, error) {
	if callSid == "" {
		return CallRecord{}, ErrInvalidKey
	}
	return s.merge(ctx, callSid, recordingFields(u, s.clock()))
}

func (s *RedisStore) merge(ctx context.Context, callSid string, fields map[string]string) (CallRecord, error) {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	flat, err := mergeScript.Run(ctx, s.rdb, []string{recordKey(callSid), updatesKey(callSid)}, args...).StringSlice()
	if err != nil {
		return CallRecord{}, fmt.Errorf("ledger merge: %w", err)
	}
	merged := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		merged[flat[i]] = flat[i+1]
	}
	return decodeRecord(callSid, merged), nil
}

func (s *RedisStore) Get(ctx context.Context, callSid string) (CallRecord, error) {
	f, err := s.rdb.HGetAll(ctx, recordKey(callSid)).Result()
	if err != nil {
		return CallRecord{}, err
	}
	if len(f) == 0 {
		return CallRecord{}, ErrNotFound
	}
	return decodeRecord(callSid, f), nil
}

// Subscribe confirms the Pub/Sub subscription before reading the snapshot so
// no write between the two is missed.
func (s *RedisStore) Subscribe(ctx context.Context, callSid string) (Subscription, error) {
	if callSid == "" {
		return nil, ErrInvalidKey
	}
	ps := s.rdb.Subscribe(ctx, updatesKey(callSid))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("ledger subscribe: %w", err)
	}

	sub := &redisSub{ps: ps, ch: make(chan CallRecord, subscriptionBuffer), done: make(chan struct{})}

	snap, err := s.Get(ctx, callSid)
	switch {
	case err == nil:
		sub.ch <- snap
	case errors.Is(err, ErrNotFound):
	default:
		_ = ps.Close()
		return nil, err
	}

	go sub.pump(logger.From(ctx).With("call_sid", callSid), callSid)
	return sub, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan CallRecord
	done chan struct{}
	once sync.Once
}

func (r *redisSub) pump(l *slog.Logger, callSid string) {
	defer close(r.ch)
	msgs := r.ps.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var fields map[string]string
			if err := json.Unmarshal([]byte(msg.Payload), &fields); err != nil {
				l.Warn("ledger: dropping malformed update", "err", err)
				continue
			}
			offer(r.ch, decodeRecord(callSid, fields))
		}
	}
}

func (r *redisSub) Updates() <-chan CallRecord { return r.ch }

func (r *redisSub) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.ps.Close()
	})
	return err
}
