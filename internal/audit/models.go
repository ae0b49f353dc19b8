package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - call_sid is required; every event the pipeline records is about one call.
// - actor and ip capture are best-effort; do not block call handling on audit failures.
//
// Storage (Postgres): table audit_events, INSERT-only.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the salesperson the event is attributed to (if known).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress is the webhook source address when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CallSid    string `json:"call_sid" db:"call_sid"`
	ProspectID string `json:"prospect_id,omitempty" db:"prospect_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeInboundRouted EventType = "inbound_routed"
	EventTypeCallLogged    EventType = "call_logged"
)
