package calls

import (
	"errors"
	"strings"
	"time"
)

// CallLog is the durable record of one telephony call.
//
// Invariant: at most one CallLog per CallSid. Creation is conditional on
// non-existence; Transcription is the only field mutated afterwards.
type CallLog struct {
	ID            string    `json:"id" db:"id"`
	CallSid       string    `json:"call_sid" db:"call_sid"`
	ParentCallSid string    `json:"parent_call_sid,omitempty" db:"parent_call_sid"`
	From          string    `json:"from" db:"from_number"`
	To            string    `json:"to" db:"to_number"`
	Direction     Direction `json:"direction" db:"direction"`
	UserID        string    `json:"user_id" db:"user_id"`
	ProspectID    string    `json:"prospect_id" db:"prospect_id"`
	ActivityID    string    `json:"activity_id" db:"activity_id"`
	Transcription string    `json:"transcription,omitempty" db:"transcription"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection maps provider direction strings ("inbound", "outbound-api",
// "outbound-dial") onto the two directions the pipeline cares about.
func ParseDirection(raw string) (Direction, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "inbound":
		return DirectionInbound, true
	case strings.HasPrefix(s, "outbound"):
		return DirectionOutbound, true
	}
	return "", false
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusAnswered   CallStatus = "answered"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

var ErrUnknownStatus = errors.New("calls: unknown call status")

// ParseCallStatus accepts the provider's status vocabulary.
func ParseCallStatus(raw string) (CallStatus, error) {
	s := CallStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case CallStatusQueued, CallStatusInitiated, CallStatusRinging, CallStatusAnswered,
		CallStatusInProgress, CallStatusCompleted, CallStatusFailed, CallStatusBusy,
		CallStatusNoAnswer, CallStatusCanceled:
		return s, nil
	}
	return "", ErrUnknownStatus
}

// IsAnswer reports whether s means the far end picked up.
func (s CallStatus) IsAnswer() bool {
	return s == CallStatusAnswered || s == CallStatusInProgress
}

// IsTerminal reports whether the call will not progress further.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusBusy, CallStatusNoAnswer, CallStatusCanceled:
		return true
	}
	return false
}

var (
	ErrNotFound       = errors.New("calls: call log not found")
	ErrInvalidCallLog = errors.New("calls: invalid call log")
)
