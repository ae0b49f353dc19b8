package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edu-crm/internal/activities"
	"edu-crm/internal/calls"
	"edu-crm/internal/contacts"
	"edu-crm/internal/ledger"
	"edu-crm/internal/routing"

	"github.com/gin-gonic/gin"
)

type fakeDispatcher struct {
	updates []ledger.RecordingUpdate
	store   *ledger.MemoryStore
}

func (d *fakeDispatcher) OnRecordingStatus(ctx context.Context, callSid string, u ledger.RecordingUpdate) (bool, error) {
	d.updates = append(d.updates, u)
	if _, err := d.store.RecordRecording(ctx, callSid, u); err != nil {
		return false, err
	}
	return u.Status == "completed", nil
}

type webhookFixture struct {
	engine     *gin.Engine
	ledger     *ledger.MemoryStore
	logs       *calls.MemoryRepo
	acts       *activities.MemoryRepo
	recordings *fakeDispatcher
}

func newWebhookFixture() webhookFixture {
	gin.SetMode(gin.TestMode)

	dir := contacts.NewMemoryRepo()
	dir.AddSalesperson(contacts.Salesperson{ID: "sp-1", FirstName: "Dana", TwilioNumber: "+15557654321"})
	dir.AddProspect(contacts.Prospect{ID: "p1", CollegeName: "Mesa College", Phone: "+16195555678"})
	resolver := contacts.NewResolver(dir)

	acts := activities.NewMemoryRepo()
	logs := calls.NewMemoryRepo(acts)
	store := ledger.NewMemoryStore()
	rec := &fakeDispatcher{store: store}

	h := WebhookHandler{
		Router:       routing.NewRouter(resolver, nil),
		Ledger:       store,
		Recorder:     calls.NewRecorder(logs, acts, resolver, nil),
		Recordings:   rec,
		Salespersons: resolver,
		Callbacks:    Callbacks{BaseURL: "https://crm.example.com"},
	}

	r := gin.New()
	r.POST("/webhooks/twilio/voice", h.HandleInboundCall)
	r.POST("/webhooks/twilio/voice/outbound", h.HandleOutboundVoice)
	r.POST("/webhooks/twilio/call-status", h.HandleCallStatus)
	r.POST("/webhooks/twilio/recording-status", h.HandleRecordingStatus)

	return webhookFixture{engine: r, ledger: store, logs: logs, acts: acts, recordings: rec}
}

func (f webhookFixture) post(target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, formRequest(target, body))
	return w
}

func TestHandleInboundCall_UnknownCallerRejected(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/voice", "CallSid=CA123&From=%2B15551234567&To=%2B15557654321&CallStatus=ringing")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, routing.MessageNotRegistered) || !strings.Contains(body, "<Hangup>") {
		t.Fatalf("expected rejection twiml, got %s", body)
	}
	if strings.Contains(body, "<Dial") {
		t.Fatalf("unknown caller must not be dialed: %s", body)
	}

	rec, err := f.ledger.Get(context.Background(), "CA123")
	if err != nil {
		t.Fatalf("ledger get: %v", err)
	}
	if rec.Status != calls.CallStatusRinging || rec.Direction != calls.DirectionInbound {
		t.Fatalf("unexpected ledger record %+v", rec)
	}

	// The provider still reports the hangup; no call log results.
	w = f.post("/webhooks/twilio/call-status", "CallSid=CA123&CallStatus=completed&From=%2B15551234567&To=%2B15557654321&Direction=inbound")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.logs.Count() != 0 {
		t.Fatalf("expected no call log for unknown caller")
	}
}

func TestHandleInboundCall_KnownCallerBridged(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/voice", "CallSid=CA7&From=%2B16195555678&To=%2B15557654321")
	body := w.Body.String()
	if !strings.Contains(body, "<Identity>sp-1</Identity>") || !strings.Contains(body, "Mesa College") {
		t.Fatalf("expected bridge to sp-1, got %s", body)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "xml") {
		t.Fatalf("expected xml content type, got %q", w.Header().Get("Content-Type"))
	}
	rec, err := f.ledger.Get(context.Background(), "CA7")
	if err != nil || rec.UserID != "sp-1" || rec.ProspectID != "p1" {
		t.Fatalf("expected ledger owner sp-1/p1, got %+v err=%v", rec, err)
	}
}

func TestHandleCallStatus_DuplicateCompletedCreatesOneLog(t *testing.T) {
	f := newWebhookFixture()
	const body = "CallSid=CA999&CallStatus=completed&From=%2B15557654321&To=%2B16195555678&CallDuration=30"
	target := "/webhooks/twilio/call-status?UserId=sp-1&ProspectId=p1&Direction=outbound"

	for i := 0; i < 2; i++ {
		w := f.post(target, body)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, w.Code)
		}
		var resp map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp["success"] != true {
			t.Fatalf("delivery %d: unexpected body %s", i, w.Body.String())
		}
	}

	if f.logs.Count() != 1 {
		t.Fatalf("expected exactly one call log, got %d", f.logs.Count())
	}
	if n := len(f.acts.Activities()); n != 1 {
		t.Fatalf("expected exactly one activity, got %d", n)
	}

	rec, err := f.ledger.Get(context.Background(), "CA999")
	if err != nil {
		t.Fatalf("ledger get: %v", err)
	}
	if !rec.IsCallEnded || rec.IsAnswerEvent || rec.DurationSeconds != 30 {
		t.Fatalf("unexpected ledger record %+v", rec)
	}
}

func TestHandleCallStatus_NonTerminalOnlyTouchesLedger(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/call-status?UserId=sp-1&Direction=outbound", "CallSid=CA5&CallStatus=ringing&To=%2B16195555678")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.logs.Count() != 0 {
		t.Fatalf("ringing must not create a call log")
	}
	rec, err := f.ledger.Get(context.Background(), "CA5")
	if err != nil || rec.Status != calls.CallStatusRinging {
		t.Fatalf("unexpected ledger state %+v err=%v", rec, err)
	}
}

func TestHandleCallStatus_ChildLegMirroredToParent(t *testing.T) {
	f := newWebhookFixture()

	f.post("/webhooks/twilio/call-status?UserId=sp-1&Direction=outbound",
		"CallSid=CA-child&ParentCallSid=CA-parent&CallStatus=in-progress&To=%2B16195555678")

	rec, err := f.ledger.Get(context.Background(), "CA-parent")
	if err != nil {
		t.Fatalf("parent ledger get: %v", err)
	}
	if !rec.IsAnswerEvent {
		t.Fatalf("expected parent to observe answer, got %+v", rec)
	}
	if rec.UserID != "sp-1" {
		t.Fatalf("expected parent to carry the owner, got %+v", rec)
	}
}

func TestHandleCallStatus_MalformedAcknowledged(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/call-status", "CallStatus=completed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed payload, got %d", w.Code)
	}
	if f.logs.Count() != 0 {
		t.Fatalf("malformed payload must not create a call log")
	}
}

func TestHandleCallStatus_UnreadableBody(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Fatalf("expected error body, got %s", w.Body.String())
	}
}

func TestHandleRecordingStatus_Dispatches(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/recording-status", "CallSid=CA1&RecordingSid=RE1&RecordingUrl=https%3A%2F%2Fapi.twilio.com%2FRE1&RecordingStatus=completed")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(f.recordings.updates) != 1 || f.recordings.updates[0].Sid != "RE1" {
		t.Fatalf("unexpected dispatcher calls %+v", f.recordings.updates)
	}
	rec, err := f.ledger.Get(context.Background(), "CA1")
	if err != nil || rec.RecordingStatus != "completed" || rec.RecordingURL != "https://api.twilio.com/RE1" {
		t.Fatalf("unexpected ledger record %+v err=%v", rec, err)
	}
}

func TestHandleOutboundVoice_UsesSalespersonNumber(t *testing.T) {
	f := newWebhookFixture()

	w := f.post("/webhooks/twilio/voice/outbound", "CallSid=CA8&To=%2B16195555678&UserId=sp-1&ProspectId=p1")
	body := w.Body.String()
	if !strings.Contains(body, `callerId="+15557654321"`) || !strings.Contains(body, ">+16195555678</Number>") {
		t.Fatalf("unexpected outbound twiml %s", body)
	}
}
