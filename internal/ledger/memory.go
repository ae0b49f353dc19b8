package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and single-instance runs.
type MemoryStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	records map[string]map[string]string
	subs    map[string]map[*memorySub]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock:   time.Now,
		records: map[string]map[string]string{},
		subs:    map[string]map[*memorySub]struct{}{},
	}
}

func (s *MemoryStore) UpsertStatus(ctx context.Context, callSid string, u StatusUpdate) (CallRecord, error) {
	if callSid == "" {
		return CallRecord{}, ErrInvalidKey
	}
	return s.merge(callSid, statusFields(u, s.clock())), nil
}

func (s *MemoryStore) RecordRecording(ctx context.Context, callSid string, u RecordingUpdate) (CallRecord, error) {
	if callSid == "" {
		return CallRecord{}, ErrInvalidKey
	}
	return s.merge(callSid, recordingFields(u, s.clock())), nil
}

func (s *MemoryStore) merge(callSid string, fields map[string]string) CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[callSid]
	if !ok {
		cur = map[string]string{}
		s.records[callSid] = cur
	}
	for k, v := range fields {
		cur[k] = v
	}
	rec := decodeRecord(callSid, cur)
	for sub := range s.subs[callSid] {
		offer(sub.ch, rec)
	}
	return rec
}

func (s *MemoryStore) Get(ctx context.Context, callSid string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[callSid]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return decodeRecord(callSid, cur), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, callSid string) (Subscription, error) {
	if callSid == "" {
		return nil, ErrInvalidKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &memorySub{store: s, key: callSid, ch: make(chan CallRecord, subscriptionBuffer)}
	if cur, ok := s.records[callSid]; ok {
		sub.ch <- decodeRecord(callSid, cur)
	}
	if s.subs[callSid] == nil {
		s.subs[callSid] = map[*memorySub]struct{}{}
	}
	s.subs[callSid][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of open subscriptions for callSid.
func (s *MemoryStore) Subscribers(callSid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[callSid])
}

type memorySub struct {
	store *MemoryStore
	key   string
	ch    chan CallRecord
	once  sync.Once
}

func (m *memorySub) Updates() <-chan CallRecord { return m.ch }

func (m *memorySub) Close() error {
	m.once.Do(func() {
		m.store.mu.Lock()
		defer m.store.mu.Unlock()
		delete(m.store.subs[m.key], m)
		if len(m.store.subs[m.key]) == 0 {
			delete(m.store.subs, m.key)
		}
		close(m.ch)
	})
	return nil
}
