package activities

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu         sync.Mutex
	clock      func() time.Time
	activities map[string]Activity
	reminders  map[string]Reminder
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		clock:      time.Now,
		activities: map[string]Activity{},
		reminders:  map[string]Reminder{},
	}
}

func (r *MemoryRepo) CreateActivity(ctx context.Context, a Activity) (Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertActivityLocked(a)
}

func (r *MemoryRepo) insertActivityLocked(a Activity) (Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Normalize(r.clock().UTC()); err != nil {
		return Activity{}, err
	}
	r.activities[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) GetActivity(ctx context.Context, id string) (Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return Activity{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateActivityDescription(ctx context.Context, id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.activities[id]
	if !ok {
		return ErrNotFound
	}
	a.Description = description
	a.UpdatedAt = r.clock().UTC()
	r.activities[id] = a
	return nil
}

func (r *MemoryRepo) CreateReminder(ctx context.Context, rem Reminder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := rem.Normalize(r.clock().UTC()); err != nil {
		return false, err
	}
	if _, exists := r.reminders[rem.ID]; exists {
		return false, nil
	}
	r.reminders[rem.ID] = rem
	return true, nil
}

func (r *MemoryRepo) ListReminders(ctx context.Context, prospectID string) ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Reminder
	for _, rem := range r.reminders {
		if rem.ProspectID == prospectID {
			out = append(out, rem)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

// Activities returns a snapshot of every stored activity.
func (r *MemoryRepo) Activities() []Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Activity, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, a)
	}
	return out
}
