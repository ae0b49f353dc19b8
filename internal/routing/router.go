package routing

import (
	"context"
	"errors"
	"fmt"

	"edu-crm/internal/contacts"
	"edu-crm/pkg/logger"
)

// ContactResolver is the slice of contacts.Resolver the Router needs.
type ContactResolver interface {
	ResolveContact(ctx context.Context, phone string) (contacts.Contact, bool, error)
	SalespersonByNumber(ctx context.Context, number string) (contacts.Salesperson, bool, error)
}

// AuditLogger records internal-only routing audit events.
type AuditLogger interface {
	LogInboundRouted(ctx context.Context, callSid string, d Decision) error
}

// InboundCall is the part of the inbound voice webhook routing looks at.
type InboundCall struct {
	CallSid string
	From    string
	To      string
}

// Router decides what happens to an inbound call.
//
// Priority:
//  1. Unknown caller: reject.
//  2. No salesperson owns the dialed number: apology.
//  3. Salesperson forwards calls: dial the forwarding number.
//  4. Otherwise: bridge to the salesperson's browser client.
//
// Return the decision only. No side effects beyond the audit hook.
type Router struct {
	Contacts ContactResolver
	Audit    AuditLogger
}

func NewRouter(c ContactResolver, audit AuditLogger) *Router {
	return &Router{Contacts: c, Audit: audit}
}

var ErrInvalidInboundCall = errors.New("routing: call_sid and to are required")

func (r *Router) RouteInboundCall(ctx context.Context, in InboundCall) (Decision, error) {
	if r.Contacts == nil {
		return Decision{}, errors.New("routing: contact resolver not configured")
	}
	if in.CallSid == "" || in.To == "" {
		return Decision{}, ErrInvalidInboundCall
	}

	sp, spFound, err := r.Contacts.SalespersonByNumber(ctx, in.To)
	if err != nil {
		return Decision{}, fmt.Errorf("routing: salesperson lookup: %w", err)
	}
	caller, callerFound, err := r.Contacts.ResolveContact(ctx, in.From)
	if err != nil {
		return Decision{}, fmt.Errorf("routing: caller lookup: %w", err)
	}

	var d Decision
	switch {
	case !callerFound:
		d = Decision{Action: ActionReject, Message: MessageNotRegistered, Reason: "unknown_caller"}
		if spFound {
			d.SalespersonID = sp.ID
		}
	case !spFound:
		d = Decision{Action: ActionApology, Message: MessageUnavailable, Reason: "unknown_destination"}
	case sp.ForwardsCalls():
		d = Decision{Action: ActionForward, SalespersonID: sp.ID, DialNumber: sp.ForwardingNumber, Reason: "forwarding"}
	default:
		d = Decision{
			Action:         ActionBridge,
			SalespersonID:  sp.ID,
			ClientIdentity: sp.ClientIdentity(),
			Parameters: []Parameter{
				{Name: ParamCallerName, Value: caller.DisplayName},
				{Name: ParamCallerType, Value: string(caller.Kind)},
				{Name: ParamProspectID, Value: caller.ProspectID},
				{Name: ParamCallerNumber, Value: in.From},
			},
			Reason: "bridge",
		}
	}

	logger.From(ctx).Info("inbound call routed",
		"call_sid", in.CallSid,
		"action", string(d.Action),
		"reason", d.Reason,
		"salesperson_id", d.SalespersonID,
	)
	if r.Audit != nil {
		if err := r.Audit.LogInboundRouted(ctx, in.CallSid, d); err != nil {
			logger.From(ctx).Warn("audit inbound_routed failed", "call_sid", in.CallSid, "err", err)
		}
	}
	return d, nil
}
