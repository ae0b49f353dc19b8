package ledger

import (
	"context"
	"errors"
	"time"

	"edu-crm/internal/calls"
)

// CallRecord is the live state of one call as last reported by the provider.
// Fields are merged per write; a write never clears a field it does not carry.
type CallRecord struct {
	CallSid         string           `json:"call_sid"`
	Status          calls.CallStatus `json:"status,omitempty"`
	From            string           `json:"from,omitempty"`
	To              string           `json:"to,omitempty"`
	Direction       calls.Direction  `json:"direction,omitempty"`
	UserID          string           `json:"user_id,omitempty"`
	ProspectID      string           `json:"prospect_id,omitempty"`
	DurationSeconds int              `json:"duration_seconds,omitempty"`
	IsAnswerEvent   bool             `json:"is_answer_event"`
	IsCallEnded     bool             `json:"is_call_ended"`
	RecordingStatus string           `json:"recording_status,omitempty"`
	RecordingURL    string           `json:"recording_url,omitempty"`
	RecordingSid    string           `json:"recording_sid,omitempty"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// StatusUpdate is one call-status observation. Empty fields are left as stored.
type StatusUpdate struct {
	Status          calls.CallStatus
	From            string
	To              string
	Direction       calls.Direction
	DurationSeconds int

	// UserID and ProspectID record who owns the call, for read access.
	UserID     string
	ProspectID string
}

// RecordingUpdate is one recording-status observation.
type RecordingUpdate struct {
	Status string
	URL    string
	Sid    string
}

// Subscription delivers the record after every write to its key. The current
// snapshot, if any, is delivered first. Slow readers only lose intermediate
// states; the latest state is always delivered.
type Subscription interface {
	Updates() <-chan CallRecord
	Close() error
}

// Subscriber is the read side of the ledger.
type Subscriber interface {
	Subscribe(ctx context.Context, callSid string) (Subscription, error)
}

// Store is the keyed merge-write call-status ledger. There is no delete.
type Store interface {
	Subscriber
	UpsertStatus(ctx context.Context, callSid string, u StatusUpdate) (CallRecord, error)
	RecordRecording(ctx context.Context, callSid string, u RecordingUpdate) (CallRecord, error)
	Get(ctx context.Context, callSid string) (CallRecord, error)
}

var (
	ErrNotFound   = errors.New("ledger: call not found")
	ErrInvalidKey = errors.New("ledger: call sid required")
)

const subscriptionBuffer = 16

// offer delivers rec to ch, discarding the oldest buffered record when full.
// Callers must be the only sender on ch.
func offer(ch chan CallRecord, rec CallRecord) {
	for {
		select {
		case ch <- rec:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
