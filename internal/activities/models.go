package activities

import (
	"errors"
	"strings"
	"time"
)

// Activity is a unit of sales work tied to a prospect.
//
// Invariant: Status == Completed implies CompletedAt is set. Normalize enforces
// it and every repository calls Normalize before writing.
type Activity struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Type        ActivityType   `json:"type" db:"type"`
	Status      ActivityStatus `json:"status" db:"status"`
	DueDate     time.Time      `json:"due_date" db:"due_date"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ProspectID  string         `json:"prospect_id" db:"prospect_id"`
	AddedBy     string         `json:"added_by" db:"added_by"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

type ActivityType string

const (
	ActivityTypeCall    ActivityType = "Call"
	ActivityTypeEmail   ActivityType = "Email"
	ActivityTypeMeeting ActivityType = "Meeting"
	ActivityTypeTask    ActivityType = "Task"
	ActivityTypeNote    ActivityType = "Note"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypeCall, ActivityTypeEmail, ActivityTypeMeeting, ActivityTypeTask, ActivityTypeNote:
		return true
	}
	return false
}

type ActivityStatus string

const (
	ActivityStatusPending    ActivityStatus = "Pending"
	ActivityStatusInProgress ActivityStatus = "In Progress"
	ActivityStatusCompleted  ActivityStatus = "Completed"
	ActivityStatusCancelled  ActivityStatus = "Cancelled"
)

func (s ActivityStatus) Valid() bool {
	switch s {
	case ActivityStatusPending, ActivityStatusInProgress, ActivityStatusCompleted, ActivityStatusCancelled:
		return true
	}
	return false
}

// Reminder is a scheduled follow-up tied to a prospect.
type Reminder struct {
	ID          string         `json:"id" db:"id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	Type        ReminderType   `json:"type" db:"type"`
	Status      ReminderStatus `json:"status" db:"status"`
	DueDate     time.Time      `json:"due_date" db:"due_date"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	ProspectID  string         `json:"prospect_id" db:"prospect_id"`
	AddedBy     string         `json:"added_by" db:"added_by"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type ReminderType string

const (
	ReminderTypeEmail   ReminderType = "Email"
	ReminderTypeSMS     ReminderType = "SMS"
	ReminderTypeCall    ReminderType = "Call"
	ReminderTypeMeeting ReminderType = "Meeting"
	ReminderTypeOther   ReminderType = "Other"
)

func (t ReminderType) Valid() bool {
	switch t {
	case ReminderTypeEmail, ReminderTypeSMS, ReminderTypeCall, ReminderTypeMeeting, ReminderTypeOther:
		return true
	}
	return false
}

type ReminderStatus string

const (
	ReminderStatusPending   ReminderStatus = "Pending"
	ReminderStatusSent      ReminderStatus = "Sent"
	ReminderStatusCancelled ReminderStatus = "Cancelled"
)

func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderStatusPending, ReminderStatusSent, ReminderStatusCancelled:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("activities: not found")
	ErrInvalidActivity = errors.New("activities: invalid activity")
	ErrInvalidReminder = errors.New("activities: invalid reminder")
)

// Normalize validates a and fills write-time fields relative to now.
func (a *Activity) Normalize(now time.Time) error {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" || a.ProspectID == "" || !a.Type.Valid() {
		return ErrInvalidActivity
	}
	if a.Status == "" {
		a.Status = ActivityStatusPending
	}
	if !a.Status.Valid() {
		return ErrInvalidActivity
	}
	if a.Status == ActivityStatusCompleted && a.CompletedAt == nil {
		ts := now
		a.CompletedAt = &ts
	}
	if a.DueDate.IsZero() {
		a.DueDate = now
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// Normalize validates r and fills write-time fields relative to now.
func (r *Reminder) Normalize(now time.Time) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.ID == "" || r.Title == "" || r.ProspectID == "" || !r.Type.Valid() {
		return ErrInvalidReminder
	}
	if r.Status == "" {
		r.Status = ReminderStatusPending
	}
	if !r.Status.Valid() {
		return ErrInvalidReminder
	}
	if r.DueDate.IsZero() {
		r.DueDate = now
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	return nil
}
