package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edu-crm/internal/activities"
	"edu-crm/internal/contacts"
	"edu-crm/pkg/logger"
)

// ContactResolver is the slice of contacts.Resolver the Recorder needs.
type ContactResolver interface {
	ResolveContact(ctx context.Context, phone string) (contacts.Contact, bool, error)
	Prospect(ctx context.Context, id string) (contacts.Prospect, bool, error)
	SalespersonByNumber(ctx context.Context, number string) (contacts.Salesperson, bool, error)
}

// Auditor receives best-effort notifications about newly created call logs.
type Auditor interface {
	LogCallLogged(ctx context.Context, l CallLog) error
}

// TerminalCall is what the status webhook knows about a call once it is
// answered or finished.
type TerminalCall struct {
	CallSid       string
	ParentCallSid string
	From          string
	To            string
	Direction     Direction
	Status        CallStatus

	// Optional, carried on callback URLs set by the router or the softphone.
	UserID     string
	ProspectID string
	ActivityID string
}

type RecordOutcome string

const (
	RecordCreated   RecordOutcome = "created"
	RecordDuplicate RecordOutcome = "duplicate"
	RecordSkipped   RecordOutcome = "skipped"
)

type RecordResult struct {
	Outcome RecordOutcome
	Log     CallLog
	Reason  string
}

// Recorder turns answered/terminal call events into exactly one CallLog and
// its linked Activity per CallSid.
type Recorder struct {
	logs     Repository
	acts     activities.Repository
	contacts ContactResolver
	audit    Auditor
	clock    func() time.Time
}

func NewRecorder(logs Repository, acts activities.Repository, contacts ContactResolver, audit Auditor) *Recorder {
	return &Recorder{logs: logs, acts: acts, contacts: contacts, audit: audit, clock: time.Now}
}

var ErrInvalidTerminalCall = errors.New("calls: invalid terminal call")

// RecordTerminalCall is a no-op for a CallSid that already has a log. A call
// whose counterpart cannot be matched to a prospect is skipped, not failed.
func (r *Recorder) RecordTerminalCall(ctx context.Context, in TerminalCall) (RecordResult, error) {
	if r == nil || r.logs == nil || r.acts == nil || r.contacts == nil {
		return RecordResult{}, errors.New("calls: recorder not configured")
	}
	if in.CallSid == "" {
		return RecordResult{}, ErrInvalidTerminalCall
	}
	if in.Direction != DirectionInbound && in.Direction != DirectionOutbound {
		return RecordResult{}, ErrInvalidTerminalCall
	}
	log := logger.From(ctx).With("call_sid", in.CallSid, "direction", string(in.Direction))

	existing, err := r.logs.FindBySid(ctx, in.CallSid)
	if err == nil {
		return RecordResult{Outcome: RecordDuplicate, Log: existing}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return RecordResult{}, fmt.Errorf("find call log: %w", err)
	}

	party, ok, err := r.counterpart(ctx, in)
	if err != nil {
		return RecordResult{}, fmt.Errorf("resolve counterpart: %w", err)
	}
	if !ok {
		log.Info("call not recorded: counterpart is not a known contact")
		return RecordResult{Outcome: RecordSkipped, Reason: "no contact match"}, nil
	}

	userID := in.UserID
	if userID == "" && in.Direction == DirectionInbound {
		sp, found, err := r.contacts.SalespersonByNumber(ctx, in.To)
		if err != nil {
			return RecordResult{}, fmt.Errorf("resolve salesperson: %w", err)
		}
		if found {
			userID = sp.ID
		}
	}

	entry := CallLog{
		CallSid:       in.CallSid,
		ParentCallSid: in.ParentCallSid,
		From:          in.From,
		To:            in.To,
		Direction:     in.Direction,
		UserID:        userID,
		ProspectID:    party.ProspectID,
	}

	var act *activities.Activity
	if in.ActivityID != "" {
		if _, err := r.acts.GetActivity(ctx, in.ActivityID); err == nil {
			entry.ActivityID = in.ActivityID
		} else if errors.Is(err, activities.ErrNotFound) {
			log.Warn("supplied activity not found; creating one", "activity_id", in.ActivityID)
		} else {
			return RecordResult{}, fmt.Errorf("load activity: %w", err)
		}
	}
	if entry.ActivityID == "" {
		a := r.callActivity(in, party, userID)
		act = &a
	}

	created, ok, err := r.logs.CreateWithActivity(ctx, entry, act)
	if err != nil {
		return RecordResult{}, fmt.Errorf("create call log: %w", err)
	}
	if !ok {
		log.Info("call log already created by a concurrent delivery")
		existing, err := r.logs.FindBySid(ctx, in.CallSid)
		if err != nil {
			return RecordResult{Outcome: RecordDuplicate}, nil
		}
		return RecordResult{Outcome: RecordDuplicate, Log: existing}, nil
	}

	log.Info("call log created", "activity_id", created.ActivityID, "prospect_id", created.ProspectID, "user_id", created.UserID)
	if r.audit != nil {
		if err := r.audit.LogCallLogged(ctx, created); err != nil {
			log.Warn("audit call_logged failed", "err", err)
		}
	}
	return RecordResult{Outcome: RecordCreated, Log: created}, nil
}

// counterpart resolves who the salesperson talked to. Inbound calls match the
// caller against prospects then members. Outbound calls use the supplied
// prospect when it still exists and otherwise match the dialed number.
func (r *Recorder) counterpart(ctx context.Context, in TerminalCall) (contacts.Contact, bool, error) {
	if in.Direction == DirectionInbound {
		return r.contacts.ResolveContact(ctx, in.From)
	}

	if in.ProspectID != "" {
		p, ok, err := r.contacts.Prospect(ctx, in.ProspectID)
		if err != nil {
			return contacts.Contact{}, false, err
		}
		if ok {
			c := contacts.ProspectContact(p)
			c.Phone = in.To
			return c, true, nil
		}
		logger.From(ctx).Warn("supplied prospect not found, matching dialed number", "prospect_id", in.ProspectID)
	}
	return r.contacts.ResolveContact(ctx, in.To)
}

func (r *Recorder) callActivity(in TerminalCall, party contacts.Contact, userID string) activities.Activity {
	now := r.clock().UTC()
	var title, desc string
	switch in.Direction {
	case DirectionOutbound:
		title = "Outbound call to " + in.To
		desc = "Outbound call to " + describe(party, in.To)
	default:
		title = "Inbound call from " + in.From
		desc = "Inbound call from " + describe(party, in.From)
	}
	if in.Status != "" && in.Status != CallStatusCompleted && in.Status.IsTerminal() {
		desc += " (" + string(in.Status) + ")"
	}
	return activities.Activity{
		Title:       title,
		Description: desc,
		Type:        activities.ActivityTypeCall,
		Status:      activities.ActivityStatusCompleted,
		DueDate:     now,
		CompletedAt: &now,
		ProspectID:  party.ProspectID,
		AddedBy:     userID,
		IsActive:    true,
	}
}

func describe(c contacts.Contact, phone string) string {
	name := strings.TrimSpace(c.DisplayName)
	if name == "" {
		return phone
	}
	return name + " (" + phone + ")"
}
