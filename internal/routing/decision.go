package routing

// Decision is the provider-agnostic output of the Router.
//
// It carries only what the provider adapter (the TwiML builder) needs to
// execute it. Callback URLs and recording settings are added by the adapter.
type Decision struct {
	Action Action `json:"action"`

	// SalespersonID owns the dialed number, when known.
	SalespersonID string `json:"salesperson_id,omitempty"`

	// DialNumber is set for ActionForward.
	DialNumber string `json:"dial_number,omitempty"`

	// ClientIdentity and Parameters are set for ActionBridge.
	ClientIdentity string      `json:"client_identity,omitempty"`
	Parameters     []Parameter `json:"parameters,omitempty"`

	// Message is spoken before hanging up for ActionReject and ActionApology.
	Message string `json:"message,omitempty"`

	// Reason is intended for internal logs/metrics.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	// ActionReject plays the rejection message and hangs up.
	ActionReject Action = "reject"
	// ActionForward dials the salesperson's external forwarding number.
	ActionForward Action = "forward"
	// ActionBridge rings the salesperson's browser client.
	ActionBridge Action = "bridge"
	// ActionApology plays the apology message and hangs up.
	ActionApology Action = "apology"
)

// Parameter is a name/value pair attached to a client bridge so the softphone
// can show who is calling.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Param returns the value of the named parameter.
func (d Decision) Param(name string) (string, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Bridge parameter names read by the softphone.
const (
	ParamCallerName   = "CallerName"
	ParamCallerType   = "CallerType"
	ParamProspectID   = "ProspectId"
	ParamCallerNumber = "CallerNumber"
)

const (
	MessageNotRegistered = "Sorry, this number is not a registered member. Goodbye."
	MessageUnavailable   = "We're sorry, the person you are trying to reach is not available. Please try again later."
)
