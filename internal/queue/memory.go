package queue

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Enqueuer for tests and single-binary local runs.
// Tasks with a DedupID already seen are ignored. Set Err to make Enqueue fail.
type Memory struct {
	mu    sync.Mutex
	tasks []Task
	seen  map[string]struct{}
	Err   error
}

func NewMemory() *Memory {
	return &Memory{seen: map[string]struct{}{}}
}

func (m *Memory) Enqueue(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, dup := m.seen[t.DedupID()]; dup {
		return nil
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
	m.seen[t.DedupID()] = struct{}{}
	m.tasks = append(m.tasks, t)
	return nil
}

// Tasks returns a snapshot of queued tasks.
func (m *Memory) Tasks() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}
