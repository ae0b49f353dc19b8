package contacts

import (
	"context"
	"errors"
)

// Directory is the read side of the identity collections the call pipeline
// resolves phone numbers against. Phone arguments are already normalized.
type Directory interface {
	FindProspectByPhone(ctx context.Context, phone string) (Prospect, bool, error)
	FindMemberByPhone(ctx context.Context, phone string) (Member, bool, error)
	FindSalespersonByNumber(ctx context.Context, number string) (Salesperson, bool, error)
	GetSalesperson(ctx context.Context, id string) (Salesperson, bool, error)
	GetProspect(ctx context.Context, id string) (Prospect, bool, error)
}

// Resolver resolves a phone number to a known contact.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver { return &Resolver{dir: dir} }

// ResolveContact checks prospects first, then members; the first match wins.
func (r *Resolver) ResolveContact(ctx context.Context, phone string) (Contact, bool, error) {
	if r == nil || r.dir == nil {
		return Contact{}, false, errors.New("contacts: directory not configured")
	}
	phone = NormalizePhone(phone)
	if phone == "" {
		return Contact{}, false, nil
	}

	p, ok, err := r.dir.FindProspectByPhone(ctx, phone)
	if err != nil {
		return Contact{}, false, err
	}
	if ok {
		return ProspectContact(p), true, nil
	}

	m, ok, err := r.dir.FindMemberByPhone(ctx, phone)
	if err != nil {
		return Contact{}, false, err
	}
	if ok {
		return MemberContact(m), true, nil
	}
	return Contact{}, false, nil
}

// SalespersonByNumber resolves the owner of a provider number.
func (r *Resolver) SalespersonByNumber(ctx context.Context, number string) (Salesperson, bool, error) {
	if r == nil || r.dir == nil {
		return Salesperson{}, false, errors.New("contacts: directory not configured")
	}
	return r.dir.FindSalespersonByNumber(ctx, NormalizePhone(number))
}

// Salesperson loads a salesperson by id.
func (r *Resolver) Salesperson(ctx context.Context, id string) (Salesperson, bool, error) {
	if r == nil || r.dir == nil {
		return Salesperson{}, false, errors.New("contacts: directory not configured")
	}
	if id == "" {
		return Salesperson{}, false, nil
	}
	return r.dir.GetSalesperson(ctx, id)
}

// Prospect loads a prospect by id.
func (r *Resolver) Prospect(ctx context.Context, id string) (Prospect, bool, error) {
	if r == nil || r.dir == nil {
		return Prospect{}, false, errors.New("contacts: directory not configured")
	}
	if id == "" {
		return Prospect{}, false, nil
	}
	return r.dir.GetProspect(ctx, id)
}
