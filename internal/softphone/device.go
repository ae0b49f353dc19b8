package softphone

import "context"

// Call is the softphone SDK's handle for one call.
type Call interface {
	// SID returns the provider call sid once the SDK knows it.
	SID() (string, bool)
	Accept() error
	Reject() error
	SendDigits(digits string) error
	Disconnect() error
}

// Device places outgoing calls. Incoming calls and call lifecycle changes are
// reported by posting Events to the Bridge.
type Device interface {
	Connect(ctx context.Context, params CallParams) (Call, error)
}

// CallParams are sent to the outbound voice webhook.
type CallParams struct {
	To         string
	UserID     string
	ProspectID string
	ActivityID string
}

// Params renders the parameter names the outbound voice webhook reads.
func (p CallParams) Params() map[string]string {
	out := map[string]string{"To": p.To}
	if p.UserID != "" {
		out["UserId"] = p.UserID
	}
	if p.ProspectID != "" {
		out["ProspectId"] = p.ProspectID
	}
	if p.ActivityID != "" {
		out["ActivityId"] = p.ActivityID
	}
	return out
}

// Event is something the SDK reports about a call.
type Event interface {
	isEvent()
}

// EventIncoming is a call ringing at this client.
type EventIncoming struct {
	Call       Call
	From       string
	CallerName string
}

// EventAccepted is the SDK's accept event for the active call.
type EventAccepted struct{ Call Call }

// EventDisconnected is the SDK's disconnect event for the active call.
type EventDisconnected struct{ Call Call }

// EventSIDResolved reports the call sid of a call created before the SDK
// knew it. Ledger observation starts only once this arrives.
type EventSIDResolved struct {
	Call Call
	SID  string
}

// EventError is an SDK failure for the active call.
type EventError struct {
	Call Call
	Err  error
}

func (EventIncoming) isEvent()     {}
func (EventAccepted) isEvent()     {}
func (EventDisconnected) isEvent() {}
func (EventSIDResolved) isEvent()  {}
func (EventError) isEvent()        {}
