package contacts

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Directory for tests and local development.
// Phones are normalized on insert so lookups match the Postgres behavior.
type MemoryRepo struct {
	mu sync.Mutex

	prospects    []Prospect
	members      []Member
	salespersons []Salesperson
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) AddProspect(p Prospect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.Phone = NormalizePhone(p.Phone)
	r.prospects = append(r.prospects, p)
}

func (r *MemoryRepo) AddMember(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Phone = NormalizePhone(m.Phone)
	r.members = append(r.members, m)
}

func (r *MemoryRepo) AddSalesperson(s Salesperson) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.TwilioNumber = NormalizePhone(s.TwilioNumber)
	r.salespersons = append(r.salespersons, s)
}

func (r *MemoryRepo) FindProspectByPhone(ctx context.Context, phone string) (Prospect, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prospects {
		if p.Phone == phone {
			return p, true, nil
		}
	}
	return Prospect{}, false, nil
}

func (r *MemoryRepo) FindMemberByPhone(ctx context.Context, phone string) (Member, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.Phone == phone {
			return m, true, nil
		}
	}
	return Member{}, false, nil
}

func (r *MemoryRepo) FindSalespersonByNumber(ctx context.Context, number string) (Salesperson, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.salespersons {
		if s.TwilioNumber == number {
			return s, true, nil
		}
	}
	return Salesperson{}, false, nil
}

func (r *MemoryRepo) GetSalesperson(ctx context.Context, id string) (Salesperson, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.salespersons {
		if s.ID == id {
			return s, true, nil
		}
	}
	return Salesperson{}, false, nil
}

func (r *MemoryRepo) GetProspect(ctx context.Context, id string) (Prospect, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prospects {
		if p.ID == id {
			return p, true, nil
		}
	}
	return Prospect{}, false, nil
}
