package telephony

import (
	"context"
	"errors"
	"net/http"

	"edu-crm/internal/calls"
	"edu-crm/internal/contacts"
	"edu-crm/internal/ledger"
	"edu-crm/internal/metrics"
	"edu-crm/internal/routing"
	"edu-crm/pkg/logger"

	"github.com/gin-gonic/gin"
)

type InboundRouter interface {
	RouteInboundCall(ctx context.Context, in routing.InboundCall) (routing.Decision, error)
}

type CallRecorder interface {
	RecordTerminalCall(ctx context.Context, in calls.TerminalCall) (calls.RecordResult, error)
}

// RecordingDispatcher writes recording metadata and, for completed
// recordings, schedules transcription. Enqueue failures are its own concern;
// a returned error means the ledger write failed.
type RecordingDispatcher interface {
	OnRecordingStatus(ctx context.Context, callSid string, u ledger.RecordingUpdate) (bool, error)
}

type StatusLedger interface {
	UpsertStatus(ctx context.Context, callSid string, u ledger.StatusUpdate) (ledger.CallRecord, error)
}

type SalespersonLookup interface {
	Salesperson(ctx context.Context, id string) (contacts.Salesperson, bool, error)
}

// WebhookHandler converts Twilio webhooks to typed events and hands them to
// the pipeline. Responses favor 200 so Twilio does not retry on problems that
// are ours to fix; only unreadable bodies and failed durable writes are 5xx.
type WebhookHandler struct {
	Router       InboundRouter
	Ledger       StatusLedger
	Recorder     CallRecorder
	Recordings   RecordingDispatcher
	Salespersons SalespersonLookup
	Callbacks    Callbacks
	Metrics      *metrics.Metrics
}

var success = gin.H{"success": true}

// HandleInboundCall answers the voice webhook of a provider number with TwiML.
func (h WebhookHandler) HandleInboundCall(c *gin.Context) {
	ev, err := ParseInboundCall(c.Request)
	if err != nil {
		h.rejectPayload(c, KindInboundCall, err)
		return
	}
	log := logger.Bind(c, "call_sid", ev.CallSid)
	ctx := routing.WithClientIP(c.Request.Context(), c.ClientIP())

	d, err := h.Router.RouteInboundCall(ctx, routing.InboundCall{CallSid: ev.CallSid, From: ev.From, To: ev.To})
	prospectID, _ := d.Param(routing.ParamProspectID)
	h.upsert(ctx, ev.CallSid, ledger.StatusUpdate{
		Status:     ev.CallStatus,
		From:       ev.From,
		To:         ev.To,
		Direction:  calls.DirectionInbound,
		UserID:     d.SalespersonID,
		ProspectID: prospectID,
	})

	var twiml string
	if err != nil {
		log.Error("inbound call routing failed", "err", err)
		h.Metrics.Webhook(string(KindInboundCall), "error")
		twiml, err = RenderMessage(routing.MessageUnavailable)
	} else {
		h.Metrics.Routed(string(d.Action))
		h.Metrics.Webhook(string(KindInboundCall), "ok")
		twiml, err = RenderInbound(d, h.Callbacks)
	}
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(twiml))
}

// HandleOutboundVoice answers the TwiML App webhook the softphone triggers.
func (h WebhookHandler) HandleOutboundVoice(c *gin.Context) {
	ev, err := ParseOutboundVoice(c.Request)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			logger.FromGin(c).Warn("outbound voice payload rejected", "err", err)
			h.Metrics.Webhook(string(KindOutboundVoice), "rejected")
			twiml, _ := RenderMessage("No number was provided for this call. Goodbye.")
			c.Data(http.StatusOK, "application/xml", []byte(twiml))
			return
		}
		h.rejectPayload(c, KindOutboundVoice, err)
		return
	}
	log := logger.Bind(c, "call_sid", ev.CallSid, "user_id", ev.UserID)

	callerID := ""
	if h.Salespersons != nil && ev.UserID != "" {
		sp, ok, err := h.Salespersons.Salesperson(c.Request.Context(), ev.UserID)
		if err != nil {
			log.Warn("salesperson lookup failed; dialing without caller id", "err", err)
		} else if ok {
			callerID = sp.TwilioNumber
		}
	}

	twiml, err := RenderOutbound(ev, callerID, h.Callbacks)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	h.Metrics.Webhook(string(KindOutboundVoice), "ok")
	c.Data(http.StatusOK, "application/xml", []byte(twiml))
}

// HandleCallStatus updates the ledger and, on answer or terminal status,
// records the call.
func (h WebhookHandler) HandleCallStatus(c *gin.Context) {
	ev, err := ParseCallStatus(c.Request)
	if err != nil {
		h.rejectPayload(c, KindCallStatus, err)
		return
	}
	log := logger.Bind(c, "call_sid", ev.CallSid, "call_status", string(ev.Status))
	ctx := c.Request.Context()

	u := ledger.StatusUpdate{
		Status:          ev.Status,
		From:            ev.From,
		To:              ev.To,
		Direction:       ev.Direction,
		DurationSeconds: ev.DurationSeconds,
		UserID:          ev.UserID,
		ProspectID:      ev.ProspectID,
	}
	h.upsert(ctx, ev.CallSid, u)
	// The softphone only knows its own leg's sid; mirror child-leg status
	// onto the parent so it observes the far end answering and hanging up.
	if ev.ParentCallSid != "" && ev.ParentCallSid != ev.CallSid {
		h.upsert(ctx, ev.ParentCallSid, ledger.StatusUpdate{
			Status:          ev.Status,
			Direction:       ev.Direction,
			DurationSeconds: ev.DurationSeconds,
			UserID:          ev.UserID,
			ProspectID:      ev.ProspectID,
		})
	}

	if !ev.Status.IsAnswer() && !ev.Status.IsTerminal() {
		h.Metrics.Webhook(string(KindCallStatus), "ok")
		c.JSON(http.StatusOK, success)
		return
	}
	if ev.Direction == "" {
		log.Warn("call status without direction; not recording call")
		h.Metrics.Webhook(string(KindCallStatus), "ok")
		c.JSON(http.StatusOK, success)
		return
	}

	res, err := h.Recorder.RecordTerminalCall(ctx, calls.TerminalCall{
		CallSid:       ev.CallSid,
		ParentCallSid: ev.ParentCallSid,
		From:          ev.From,
		To:            ev.To,
		Direction:     ev.Direction,
		Status:        ev.Status,
		UserID:        ev.UserID,
		ProspectID:    ev.ProspectID,
		ActivityID:    ev.ActivityID,
	})
	if err != nil {
		log.Error("record call failed", "err", err)
		h.Metrics.Webhook(string(KindCallStatus), "error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "record call failed"})
		return
	}
	h.Metrics.CallLogged(string(res.Outcome))
	h.Metrics.Webhook(string(KindCallStatus), "ok")
	c.JSON(http.StatusOK, success)
}

// HandleRecordingStatus records recording metadata and schedules transcription.
func (h WebhookHandler) HandleRecordingStatus(c *gin.Context) {
	ev, err := ParseRecordingStatus(c.Request)
	if err != nil {
		h.rejectPayload(c, KindRecordingStatus, err)
		return
	}
	log := logger.Bind(c, "call_sid", ev.CallSid, "recording_status", ev.RecordingStatus)

	enqueued, err := h.Recordings.OnRecordingStatus(c.Request.Context(), ev.CallSid, ledger.RecordingUpdate{
		Status: ev.RecordingStatus,
		URL:    ev.RecordingURL,
		Sid:    ev.RecordingSid,
	})
	if err != nil {
		log.Error("recording status not written to ledger", "err", err)
	}
	log.Debug("recording status handled", "enqueued", enqueued)
	h.Metrics.Webhook(string(KindRecordingStatus), "ok")
	c.JSON(http.StatusOK, success)
}

// rejectPayload answers 500 for unreadable bodies and logs-and-acks
// well-formed bodies that fail validation.
func (h WebhookHandler) rejectPayload(c *gin.Context, kind EventKind, err error) {
	log := logger.FromGin(c)
	if errors.Is(err, ErrUnreadableForm) {
		log.Error("webhook body unreadable", "kind", string(kind), "err", err)
		h.Metrics.Webhook(string(kind), "error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid form"})
		return
	}
	log.Warn("webhook payload rejected", "kind", string(kind), "err", err)
	h.Metrics.Webhook(string(kind), "rejected")
	if kind == KindInboundCall {
		twiml, _ := RenderMessage(routing.MessageUnavailable)
		c.Data(http.StatusOK, "application/xml", []byte(twiml))
		return
	}
	c.JSON(http.StatusOK, success)
}

func (h WebhookHandler) upsert(ctx context.Context, callSid string, u ledger.StatusUpdate) {
	if h.Ledger == nil {
		return
	}
	if _, err := h.Ledger.UpsertStatus(ctx, callSid, u); err != nil {
		logger.From(ctx).Error("ledger status write failed", "call_sid", callSid, "err", err)
	}
}
