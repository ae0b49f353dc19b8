package calls

import (
	"context"
	"sync"
	"time"

	"edu-crm/internal/activities"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests. Activities are written to
// the supplied activities repository while the call-log lock is held.
type MemoryRepo struct {
	mu    sync.Mutex
	acts  activities.Repository
	logs  map[string]CallLog
	clock func() time.Time
}

func NewMemoryRepo(acts activities.Repository) *MemoryRepo {
	return &MemoryRepo{acts: acts, logs: map[string]CallLog{}, clock: time.Now}
}

func (r *MemoryRepo) FindBySid(ctx context.Context, callSid string) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[callSid]
	if !ok {
		return CallLog{}, ErrNotFound
	}
	return l, nil
}

func (r *MemoryRepo) FindByAnyLeg(ctx context.Context, callSid string) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[callSid]; ok {
		return l, nil
	}
	var found CallLog
	for _, l := range r.logs {
		if l.ParentCallSid != callSid {
			continue
		}
		if found.ID == "" || l.CreatedAt.Before(found.CreatedAt) {
			found = l
		}
	}
	if found.ID == "" {
		return CallLog{}, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepo) CreateWithActivity(ctx context.Context, log CallLog, act *activities.Activity) (CallLog, bool, error) {
	if log.CallSid == "" || log.ProspectID == "" {
		return CallLog{}, false, ErrInvalidCallLog
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.logs[log.CallSid]; exists {
		return CallLog{}, false, nil
	}
	if act != nil {
		created, err := r.acts.CreateActivity(ctx, *act)
		if err != nil {
			return CallLog{}, false, err
		}
		log.ActivityID = created.ID
	}
	if log.ActivityID == "" {
		return CallLog{}, false, ErrInvalidCallLog
	}

	now := r.clock().UTC()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = now
	log.UpdatedAt = now
	r.logs[log.CallSid] = log
	return log, true, nil
}

func (r *MemoryRepo) SetTranscription(ctx context.Context, callSid, transcription string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[callSid]
	if !ok {
		return ErrNotFound
	}
	l.Transcription = transcription
	l.UpdatedAt = r.clock().UTC()
	r.logs[callSid] = l
	return nil
}

// Count returns the number of stored call logs.
func (r *MemoryRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.logs)
}
