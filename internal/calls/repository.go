package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"edu-crm/internal/activities"
	"edu-crm/pkg/utils"

	"github.com/google/uuid"
)

// Repository persists call logs.
//
// CreateWithActivity writes the log and, when act is non-nil, the activity it
// links to as one unit. It returns created=false without error when a log for
// the same CallSid already exists; in that case act is not written either.
type Repository interface {
	FindBySid(ctx context.Context, callSid string) (CallLog, error)
	FindByAnyLeg(ctx context.Context, callSid string) (CallLog, error)
	CreateWithActivity(ctx context.Context, log CallLog, act *activities.Activity) (CallLog, bool, error)
	SetTranscription(ctx context.Context, callSid, transcription string) error
}

// NOTE: This repository assumes UNIQUE (call_sid) on call_logs. Idempotency
// under concurrent webhook delivery relies on that constraint, not on the
// lookup the Recorder does first.

type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const selectLog = `
SELECT id, call_sid, parent_call_sid, from_number, to_number, direction,
       user_id, prospect_id, activity_id, transcription, created_at, updated_at
FROM call_logs
`

func (r *PostgresRepo) FindBySid(ctx context.Context, callSid string) (CallLog, error) {
	const q = selectLog + `WHERE call_sid = $1`
	return scanLog(r.db.QueryRowContext(ctx, q, callSid))
}

// FindByAnyLeg matches the log of the leg itself first, then a child leg whose
// parent is callSid. Dial recordings report the parent leg's sid while status
// callbacks, and so call logs, carry the child's.
func (r *PostgresRepo) FindByAnyLeg(ctx context.Context, callSid string) (CallLog, error) {
	const q = selectLog + `
WHERE call_sid = $1 OR parent_call_sid = $1
ORDER BY (call_sid = $1) DESC, created_at ASC
LIMIT 1`
	return scanLog(r.db.QueryRowContext(ctx, q, callSid))
}

func scanLog(row *sql.Row) (CallLog, error) {
	var l CallLog
	var parent, transcription sql.NullString
	var direction string
	if err := row.Scan(
		&l.ID,
		&l.CallSid,
		&parent,
		&l.From,
		&l.To,
		&direction,
		&l.UserID,
		&l.ProspectID,
		&l.ActivityID,
		&transcription,
		&l.CreatedAt,
		&l.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallLog{}, ErrNotFound
		}
		return CallLog{}, err
	}
	l.ParentCallSid = parent.String
	l.Transcription = transcription.String
	l.Direction = Direction(direction)
	return l, nil
}

var errDuplicateLog = errors.New("calls: duplicate call log")

func (r *PostgresRepo) CreateWithActivity(ctx context.Context, log CallLog, act *activities.Activity) (CallLog, bool, error) {
	if log.CallSid == "" || log.ProspectID == "" {
		return CallLog{}, false, ErrInvalidCallLog
	}
	now := r.clock().UTC()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	log.CreatedAt = now
	log.UpdatedAt = now

	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if act != nil {
			created, err := activities.InsertActivity(ctx, tx, *act, now)
			if err != nil {
				return err
			}
			log.ActivityID = created.ID
		}
		if log.ActivityID == "" {
			return ErrInvalidCallLog
		}

		const q = `
INSERT INTO call_logs (
	id, call_sid, parent_call_sid, from_number, to_number, direction,
	user_id, prospect_id, activity_id, created_at, updated_at
) VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (call_sid) DO NOTHING
`
		res, err := tx.ExecContext(ctx, q,
			log.ID,
			log.CallSid,
			log.ParentCallSid,
			log.From,
			log.To,
			string(log.Direction),
			log.UserID,
			log.ProspectID,
			log.ActivityID,
			log.CreatedAt,
			log.UpdatedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Roll back the activity written above.
			return errDuplicateLog
		}
		return nil
	})
	if errors.Is(err, errDuplicateLog) {
		return CallLog{}, false, nil
	}
	if err != nil {
		return CallLog{}, false, err
	}
	return log, true, nil
}

func (r *PostgresRepo) SetTranscription(ctx context.Context, callSid, transcription string) error {
	const q = `UPDATE call_logs SET transcription = $2, updated_at = $3 WHERE call_sid = $1`
	res, err := r.db.ExecContext(ctx, q, callSid, transcription, r.clock().UTC())
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
