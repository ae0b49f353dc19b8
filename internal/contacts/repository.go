package contacts

import (
	"context"
	"database/sql"
	"errors"
)

// NOTE: This repository assumes phone columns hold normalized values
// (see NormalizePhone) and are indexed:
// - prospects(phone), members(phone), salespersons(twilio_number) UNIQUE

// PostgresRepo is the Directory backed by the prospects, members and salespersons tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindProspectByPhone(ctx context.Context, phone string) (Prospect, bool, error) {
	const q = `
SELECT id, college_name, first_name, last_name, phone, assigned_to, created_at
FROM prospects
WHERE phone = $1
ORDER BY created_at
LIMIT 1
`
	return scanProspect(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) GetProspect(ctx context.Context, id string) (Prospect, bool, error) {
	const q = `
SELECT id, college_name, first_name, last_name, phone, assigned_to, created_at
FROM prospects
WHERE id = $1
`
	return scanProspect(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) FindMemberByPhone(ctx context.Context, phone string) (Member, bool, error) {
	const q = `
SELECT id, prospect_id, first_name, last_name, title, phone, created_at
FROM members
WHERE phone = $1
ORDER BY created_at
LIMIT 1
`
	var m Member
	err := r.db.QueryRowContext(ctx, q, phone).Scan(
		&m.ID,
		&m.ProspectID,
		&m.FirstName,
		&m.LastName,
		&m.Title,
		&m.Phone,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, false, nil
		}
		return Member{}, false, err
	}
	return m, true, nil
}

func (r *PostgresRepo) FindSalespersonByNumber(ctx context.Context, number string) (Salesperson, bool, error) {
	const q = `
SELECT id, first_name, last_name, email, twilio_number, is_forwarding, forwarding_number
FROM salespersons
WHERE twilio_number = $1
`
	return scanSalesperson(r.db.QueryRowContext(ctx, q, number))
}

func (r *PostgresRepo) GetSalesperson(ctx context.Context, id string) (Salesperson, bool, error) {
	const q = `
SELECT id, first_name, last_name, email, twilio_number, is_forwarding, forwarding_number
FROM salespersons
WHERE id = $1
`
	return scanSalesperson(r.db.QueryRowContext(ctx, q, id))
}

func scanProspect(row *sql.Row) (Prospect, bool, error) {
	var p Prospect
	var assigned sql.NullString
	err := row.Scan(
		&p.ID,
		&p.CollegeName,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&assigned,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prospect{}, false, nil
		}
		return Prospect{}, false, err
	}
	p.AssignedTo = assigned.String
	return p, true, nil
}

func scanSalesperson(row *sql.Row) (Salesperson, bool, error) {
	var s Salesperson
	var fwd sql.NullString
	err := row.Scan(
		&s.ID,
		&s.FirstName,
		&s.LastName,
		&s.Email,
		&s.TwilioNumber,
		&s.IsForwarding,
		&fwd,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Salesperson{}, false, nil
		}
		return Salesperson{}, false, err
	}
	s.ForwardingNumber = fwd.String
	return s, true, nil
}
