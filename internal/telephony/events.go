package telephony

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"edu-crm/internal/calls"
)

// Webhook payloads are converted into one of these events before any business
// logic runs. Twilio sends application/x-www-form-urlencoded bodies; the
// UserId/ProspectId/ActivityId/Direction values we attach to callback URLs
// arrive on the query string.
//
// Ref: https://www.twilio.com/docs/voice/twiml#request-parameters

type Event interface {
	Kind() EventKind
	Sid() string
}

type EventKind string

const (
	KindInboundCall     EventKind = "inbound_call"
	KindOutboundVoice   EventKind = "outbound_voice"
	KindCallStatus      EventKind = "call_status"
	KindRecordingStatus EventKind = "recording_status"
)

// InboundCallEvent is the voice webhook for a call to a provider number.
type InboundCallEvent struct {
	CallSid    string
	From       string
	To         string
	CallStatus calls.CallStatus
}

func (e InboundCallEvent) Kind() EventKind { return KindInboundCall }
func (e InboundCallEvent) Sid() string     { return e.CallSid }

// OutboundVoiceEvent is the TwiML App webhook hit when the softphone places a call.
type OutboundVoiceEvent struct {
	CallSid    string
	To         string
	UserID     string
	ProspectID string
	ActivityID string
}

func (e OutboundVoiceEvent) Kind() EventKind { return KindOutboundVoice }
func (e OutboundVoiceEvent) Sid() string     { return e.CallSid }

// CallStatusEvent is one status callback for a call leg.
type CallStatusEvent struct {
	CallSid         string
	ParentCallSid   string
	Status          calls.CallStatus
	From            string
	To              string
	Direction       calls.Direction
	DurationSeconds int

	UserID     string
	ProspectID string
	ActivityID string
}

func (e CallStatusEvent) Kind() EventKind { return KindCallStatus }
func (e CallStatusEvent) Sid() string     { return e.CallSid }

// RecordingStatusEvent is one recording status callback.
type RecordingStatusEvent struct {
	CallSid         string
	RecordingSid    string
	RecordingURL    string
	RecordingStatus string
}

func (e RecordingStatusEvent) Kind() EventKind { return KindRecordingStatus }
func (e RecordingStatusEvent) Sid() string     { return e.CallSid }

// Completed reports whether the recording media is final and fetchable.
func (e RecordingStatusEvent) Completed() bool { return e.RecordingStatus == "completed" }

var (
	// ErrUnreadableForm means the body could not be parsed at all.
	ErrUnreadableForm = errors.New("telephony: unreadable webhook form")
	// ErrMalformedPayload means the form parsed but required fields are missing or invalid.
	ErrMalformedPayload = errors.New("telephony: malformed webhook payload")
)

type webhookForm struct {
	query url.Values
	body  url.Values
}

func readForm(r *http.Request) (webhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return webhookForm{}, fmt.Errorf("%w: %v", ErrUnreadableForm, err)
	}
	return webhookForm{query: r.URL.Query(), body: r.PostForm}, nil
}

// get prefers values we put on the callback URL over provider body fields of
// the same name (Twilio also sends its own Direction).
func (f webhookForm) get(name string) string {
	if v := strings.TrimSpace(f.query.Get(name)); v != "" {
		return v
	}
	return strings.TrimSpace(f.body.Get(name))
}

// bodyValue reads a provider field, falling back to the query string for
// webhooks configured as GET.
func (f webhookForm) bodyValue(name string) string {
	if v := strings.TrimSpace(f.body.Get(name)); v != "" {
		return v
	}
	return strings.TrimSpace(f.query.Get(name))
}

func malformed(field string) error {
	return fmt.Errorf("%w: %s required", ErrMalformedPayload, field)
}

func ParseInboundCall(r *http.Request) (InboundCallEvent, error) {
	f, err := readForm(r)
	if err != nil {
		return InboundCallEvent{}, err
	}
	ev := InboundCallEvent{
		CallSid: f.bodyValue("CallSid"),
		From:    f.bodyValue("From"),
		To:      f.bodyValue("To"),
	}
	if ev.CallSid == "" {
		return InboundCallEvent{}, malformed("CallSid")
	}
	if ev.To == "" {
		return InboundCallEvent{}, malformed("To")
	}
	ev.CallStatus = calls.CallStatusRinging
	if raw := f.bodyValue("CallStatus"); raw != "" {
		if st, err := calls.ParseCallStatus(raw); err == nil {
			ev.CallStatus = st
		}
	}
	return ev, nil
}

func ParseOutboundVoice(r *http.Request) (OutboundVoiceEvent, error) {
	f, err := readForm(r)
	if err != nil {
		return OutboundVoiceEvent{}, err
	}
	ev := OutboundVoiceEvent{
		CallSid:    f.bodyValue("CallSid"),
		To:         f.get("To"),
		UserID:     f.get("UserId"),
		ProspectID: f.get("ProspectId"),
		ActivityID: f.get("ActivityId"),
	}
	if ev.CallSid == "" {
		return OutboundVoiceEvent{}, malformed("CallSid")
	}
	if ev.To == "" {
		return OutboundVoiceEvent{}, malformed("To")
	}
	return ev, nil
}

func ParseCallStatus(r *http.Request) (CallStatusEvent, error) {
	f, err := readForm(r)
	if err != nil {
		return CallStatusEvent{}, err
	}
	ev := CallStatusEvent{
		CallSid:       f.bodyValue("CallSid"),
		ParentCallSid: f.bodyValue("ParentCallSid"),
		From:          f.bodyValue("From"),
		To:            f.bodyValue("To"),
		UserID:        f.get("UserId"),
		ProspectID:    f.get("ProspectId"),
		ActivityID:    f.get("ActivityId"),
	}
	if ev.CallSid == "" {
		return CallStatusEvent{}, malformed("CallSid")
	}
	st, err := calls.ParseCallStatus(f.bodyValue("CallStatus"))
	if err != nil {
		return CallStatusEvent{}, fmt.Errorf("%w: CallStatus %q", ErrMalformedPayload, f.bodyValue("CallStatus"))
	}
	ev.Status = st
	if d, ok := calls.ParseDirection(f.get("Direction")); ok {
		ev.Direction = d
	}
	if raw := f.bodyValue("CallDuration"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			ev.DurationSeconds = n
		}
	}
	return ev, nil
}

func ParseRecordingStatus(r *http.Request) (RecordingStatusEvent, error) {
	f, err := readForm(r)
	if err != nil {
		return RecordingStatusEvent{}, err
	}
	ev := RecordingStatusEvent{
		CallSid:         f.bodyValue("CallSid"),
		RecordingSid:    f.bodyValue("RecordingSid"),
		RecordingURL:    f.bodyValue("RecordingUrl"),
		RecordingStatus: strings.ToLower(f.bodyValue("RecordingStatus")),
	}
	if ev.CallSid == "" {
		return RecordingStatusEvent{}, malformed("CallSid")
	}
	if ev.RecordingStatus == "" {
		return RecordingStatusEvent{}, malformed("RecordingStatus")
	}
	if ev.Completed() && ev.RecordingURL == "" {
		return RecordingStatusEvent{}, malformed("RecordingUrl")
	}
	return ev, nil
}
