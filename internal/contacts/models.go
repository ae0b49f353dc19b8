package contacts

import (
	"strings"
	"time"
)

// Prospect is a college or institution being sold to.
type Prospect struct {
	ID          string    `json:"id" db:"id"`
	CollegeName string    `json:"college_name" db:"college_name"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	Phone       string    `json:"phone" db:"phone"`
	AssignedTo  string    `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Member is a staff contact at a prospect institution.
type Member struct {
	ID         string    `json:"id" db:"id"`
	ProspectID string    `json:"prospect_id" db:"prospect_id"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Title      string    `json:"title,omitempty" db:"title"`
	Phone      string    `json:"phone" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Salesperson owns a provider number. Inbound calls to that number are bridged
// to the salesperson's browser client unless forwarding is enabled.
type Salesperson struct {
	ID               string `json:"id" db:"id"`
	FirstName        string `json:"first_name" db:"first_name"`
	LastName         string `json:"last_name" db:"last_name"`
	Email            string `json:"email" db:"email"`
	TwilioNumber     string `json:"twilio_number" db:"twilio_number"`
	IsForwarding     bool   `json:"is_forwarding" db:"is_forwarding"`
	ForwardingNumber string `json:"forwarding_number,omitempty" db:"forwarding_number"`
}

// ClientIdentity is the softphone identity the salesperson registers with.
func (s Salesperson) ClientIdentity() string { return s.ID }

// ForwardsCalls reports whether inbound calls go to the external number.
func (s Salesperson) ForwardsCalls() bool {
	return s.IsForwarding && strings.TrimSpace(s.ForwardingNumber) != ""
}

type ContactKind string

const (
	ContactKindProspect ContactKind = "prospect"
	ContactKindMember   ContactKind = "member"
)

// Contact is the resolved counterpart of a call.
type Contact struct {
	Kind        ContactKind
	ID          string
	ProspectID  string
	DisplayName string
	Phone       string
}

// ProspectContact builds the call counterpart for a prospect. Prospects are
// shown by college name, falling back to the contact person.
func ProspectContact(p Prospect) Contact {
	name := strings.TrimSpace(p.CollegeName)
	if name == "" {
		name = fullName(p.FirstName, p.LastName)
	}
	return Contact{Kind: ContactKindProspect, ID: p.ID, ProspectID: p.ID, DisplayName: name, Phone: p.Phone}
}

// MemberContact builds the call counterpart for a staff member.
func MemberContact(m Member) Contact {
	return Contact{Kind: ContactKindMember, ID: m.ID, ProspectID: m.ProspectID, DisplayName: fullName(m.FirstName, m.LastName), Phone: m.Phone}
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
