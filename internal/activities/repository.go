package activities

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"edu-crm/pkg/utils"

	"github.com/google/uuid"
)

// Repository persists activities and reminders.
//
// CreateReminder is keyed by Reminder.ID and reports created=false when a
// reminder with that id already exists, so redelivered work stays idempotent.
type Repository interface {
	CreateActivity(ctx context.Context, a Activity) (Activity, error)
	GetActivity(ctx context.Context, id string) (Activity, error)
	UpdateActivityDescription(ctx context.Context, id, description string) error
	CreateReminder(ctx context.Context, r Reminder) (bool, error)
	ListReminders(ctx context.Context, prospectID string) ([]Reminder, error)
}

// PostgresRepo implements Repository against the activities and reminders tables.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) CreateActivity(ctx context.Context, a Activity) (Activity, error) {
	return InsertActivity(ctx, r.db, a, r.clock().UTC())
}

// InsertActivity writes a new activity using db, which may be a transaction.
func InsertActivity(ctx context.Context, db utils.DBTX, a Activity, now time.Time) (Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.Normalize(now); err != nil {
		return Activity{}, err
	}

	const q = `
INSERT INTO activities (
	id, title, description, type, status, due_date, completed_at,
	prospect_id, added_by, is_active, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err := db.ExecContext(ctx, q,
		a.ID,
		a.Title,
		a.Description,
		string(a.Type),
		string(a.Status),
		a.DueDate,
		a.CompletedAt,
		a.ProspectID,
		a.AddedBy,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return Activity{}, err
	}
	return a, nil
}

func (r *PostgresRepo) GetActivity(ctx context.Context, id string) (Activity, error) {
	const q = `
SELECT id, title, description, type, status, due_date, completed_at,
       prospect_id, added_by, is_active, created_at, updated_at
FROM activities
WHERE id = $1
`
	var a Activity
	var typ, status string
	var completedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID,
		&a.Title,
		&a.Description,
		&typ,
		&status,
		&a.DueDate,
		&completedAt,
		&a.ProspectID,
		&a.AddedBy,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Activity{}, ErrNotFound
		}
		return Activity{}, err
	}
	a.Type = ActivityType(typ)
	a.Status = ActivityStatus(status)
	if completedAt.Valid {
		ts := completedAt.Time
		a.CompletedAt = &ts
	}
	return a, nil
}

func (r *PostgresRepo) UpdateActivityDescription(ctx context.Context, id, description string) error {
	const q = `UPDATE activities SET description = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, description, r.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateReminder(ctx context.Context, rem Reminder) (bool, error) {
	if err := rem.Normalize(r.clock().UTC()); err != nil {
		return false, err
	}

	const q = `
INSERT INTO reminders (
	id, title, description, type, status, due_date, completed_at,
	prospect_id, added_by, is_active, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		rem.ID,
		rem.Title,
		rem.Description,
		string(rem.Type),
		string(rem.Status),
		rem.DueDate,
		rem.CompletedAt,
		rem.ProspectID,
		rem.AddedBy,
		rem.IsActive,
		rem.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) ListReminders(ctx context.Context, prospectID string) ([]Reminder, error) {
	const q = `
SELECT id, title, description, type, status, due_date, completed_at,
       prospect_id, added_by, is_active, created_at
FROM reminders
WHERE prospect_id = $1
ORDER BY due_date, id
`
	rows, err := r.db.QueryContext(ctx, q, prospectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var rem Reminder
		var typ, status string
		var completedAt sql.NullTime
		if err := rows.Scan(
			&rem.ID,
			&rem.Title,
			&rem.Description,
			&typ,
			&status,
			&rem.DueDate,
			&completedAt,
			&rem.ProspectID,
			&rem.AddedBy,
			&rem.IsActive,
			&rem.CreatedAt,
		); err != nil {
			return nil, err
		}
		rem.Type = ReminderType(typ)
		rem.Status = ReminderStatus(status)
		if completedAt.Valid {
			ts := completedAt.Time
			rem.CompletedAt = &ts
		}
		out = append(out, rem)
	}
	return out, rows.Err()
}
