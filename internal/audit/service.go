package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallSid == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogInboundRouted records the router's decision for an inbound call.
func (s *Service) LogInboundRouted(ctx context.Context, callSid, salespersonID, ip, action, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeInboundRouted,
		ActorUserID: salespersonID,
		IPAddress:   ip,
		CallSid:     callSid,
		Message:     "inbound call " + action,
		Metadata:    metadata,
	})
}

// LogCallLogged records creation of the durable call log for a call.
func (s *Service) LogCallLogged(ctx context.Context, callSid, userID, prospectID, activityID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallLogged,
		ActorUserID: userID,
		CallSid:     callSid,
		ProspectID:  prospectID,
		Message:     "call log created",
		Metadata:    `{"activity_id":"` + activityID + `"}`,
	})
}
