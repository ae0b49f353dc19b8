package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/url"
	"strings"

	"edu-crm/internal/calls"
	"edu-crm/internal/routing"
)

// TwiML is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only include primitives we need at the adapter boundary.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName                      xml.Name     `xml:"Dial"`
	CallerID                     string       `xml:"callerId,attr,omitempty"`
	Record                       string       `xml:"record,attr,omitempty"`
	RecordingStatusCallback      string       `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackEvent string       `xml:"recordingStatusCallbackEvent,attr,omitempty"`
	Number                       *twimlNumber `xml:"Number,omitempty"`
	Client                       *twimlClient `xml:"Client,omitempty"`
}

type twimlNumber struct {
	StatusCallback       string `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent  string `xml:"statusCallbackEvent,attr,omitempty"`
	StatusCallbackMethod string `xml:"statusCallbackMethod,attr,omitempty"`
	Value                string `xml:",chardata"`
}

type twimlClient struct {
	StatusCallback       string           `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent  string           `xml:"statusCallbackEvent,attr,omitempty"`
	StatusCallbackMethod string           `xml:"statusCallbackMethod,attr,omitempty"`
	Identity             string           `xml:"Identity"`
	Parameters           []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

const (
	// Every bridge reports these so the ledger stays current.
	statusCallbackEvents = "initiated ringing answered completed"
	recordFromAnswer     = "record-from-answer"
	sayVoice             = "alice"
)

// Callbacks builds the absolute webhook URLs embedded in TwiML.
type Callbacks struct {
	BaseURL string
}

func (c Callbacks) base() string { return strings.TrimRight(c.BaseURL, "/") }

// CallStatusURL carries the given values back to the status webhook.
func (c Callbacks) CallStatusURL(values url.Values) string {
	u := c.base() + "/webhooks/twilio/call-status"
	if enc := values.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (c Callbacks) RecordingStatusURL() string {
	return c.base() + "/webhooks/twilio/recording-status"
}

// RenderInbound maps a routing decision to TwiML.
func RenderInbound(d routing.Decision, cb Callbacks) (string, error) {
	var r twimlResponse

	switch d.Action {
	case routing.ActionReject, routing.ActionApology:
		msg := d.Message
		if msg == "" {
			msg = routing.MessageUnavailable
		}
		r.Verbs = append(r.Verbs, twimlSay{Voice: sayVoice, Text: msg}, twimlHangup{})
	case routing.ActionForward:
		if strings.TrimSpace(d.DialNumber) == "" {
			return "", errors.New("telephony: dial number required for forward action")
		}
		dial := recordedDial(cb)
		dial.Number = &twimlNumber{
			StatusCallback:       cb.CallStatusURL(inboundValues(d)),
			StatusCallbackEvent:  statusCallbackEvents,
			StatusCallbackMethod: "POST",
			Value:                d.DialNumber,
		}
		r.Verbs = append(r.Verbs, dial)
	case routing.ActionBridge:
		if strings.TrimSpace(d.ClientIdentity) == "" {
			return "", errors.New("telephony: client identity required for bridge action")
		}
		client := &twimlClient{
			StatusCallback:       cb.CallStatusURL(inboundValues(d)),
			StatusCallbackEvent:  statusCallbackEvents,
			StatusCallbackMethod: "POST",
			Identity:             d.ClientIdentity,
		}
		for _, p := range d.Parameters {
			client.Parameters = append(client.Parameters, twimlParameter{Name: p.Name, Value: p.Value})
		}
		dial := recordedDial(cb)
		dial.Client = client
		r.Verbs = append(r.Verbs, dial)
	default:
		return "", errors.New("telephony: unknown inbound action")
	}

	return encode(r)
}

// RenderOutbound dials the number the softphone requested, presenting the
// salesperson's provider number as caller id.
func RenderOutbound(ev OutboundVoiceEvent, callerID string, cb Callbacks) (string, error) {
	if strings.TrimSpace(ev.To) == "" {
		return "", errors.New("telephony: destination required for outbound dial")
	}
	v := url.Values{}
	v.Set("Direction", string(calls.DirectionOutbound))
	if ev.UserID != "" {
		v.Set("UserId", ev.UserID)
	}
	if ev.ProspectID != "" {
		v.Set("ProspectId", ev.ProspectID)
	}
	if ev.ActivityID != "" {
		v.Set("ActivityId", ev.ActivityID)
	}

	dial := recordedDial(cb)
	dial.CallerID = callerID
	dial.Number = &twimlNumber{
		StatusCallback:       cb.CallStatusURL(v),
		StatusCallbackEvent:  statusCallbackEvents,
		StatusCallbackMethod: "POST",
		Value:                ev.To,
	}
	return encode(twimlResponse{Verbs: []any{dial}})
}

// RenderMessage speaks msg and hangs up.
func RenderMessage(msg string) (string, error) {
	return encode(twimlResponse{Verbs: []any{twimlSay{Voice: sayVoice, Text: msg}, twimlHangup{}}})
}

func recordedDial(cb Callbacks) twimlDial {
	return twimlDial{
		Record:                       recordFromAnswer,
		RecordingStatusCallback:      cb.RecordingStatusURL(),
		RecordingStatusCallbackEvent: "in-progress completed absent",
	}
}

func inboundValues(d routing.Decision) url.Values {
	v := url.Values{}
	v.Set("Direction", string(calls.DirectionInbound))
	if d.SalespersonID != "" {
		v.Set("UserId", d.SalespersonID)
	}
	if pid, ok := d.Param(routing.ParamProspectID); ok && pid != "" {
		v.Set("ProspectId", pid)
	}
	return v
}

func encode(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
