package ledger

import (
	"context"
	"testing"
	"time"

	"edu-crm/internal/calls"
)

func TestMemoryStore_MergePreservesFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusCompleted, From: "+1", To: "+2", Direction: calls.DirectionOutbound}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, err := s.RecordRecording(ctx, "CA1", RecordingUpdate{Status: "completed", URL: "https://api.twilio.com/rec/RE1", Sid: "RE1"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.Status != calls.CallStatusCompleted || !rec.IsCallEnded {
		t.Fatalf("status clobbered: %+v", rec)
	}
	if rec.From != "+1" || rec.To != "+2" || rec.Direction != calls.DirectionOutbound {
		t.Fatalf("identity fields clobbered: %+v", rec)
	}
	if rec.RecordingURL == "" || rec.RecordingSid != "RE1" {
		t.Fatalf("recording not merged: %+v", rec)
	}
}

func TestMemoryStore_StatusWriteKeepsRecordingAndParties(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusRinging, From: "+1", To: "+2"})
	_, _ = s.RecordRecording(ctx, "CA1", RecordingUpdate{Status: "in-progress"})
	rec, _ := s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusInProgress})

	if rec.From != "+1" || rec.RecordingStatus != "in-progress" {
		t.Fatalf("merge lost fields: %+v", rec)
	}
}

func TestMemoryStore_OwnerFieldsSurviveLaterWrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusRinging, UserID: "sp-1", ProspectID: "p1"})
	rec, _ := s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusCompleted})

	if rec.UserID != "sp-1" || rec.ProspectID != "p1" {
		t.Fatalf("owner fields lost: %+v", rec)
	}
}

func TestDerivedFlagsFollowIncomingStatus(t *testing.T) {
	answer := map[calls.CallStatus]bool{calls.CallStatusAnswered: true, calls.CallStatusInProgress: true}
	ended := map[calls.CallStatus]bool{
		calls.CallStatusCompleted: true, calls.CallStatusFailed: true, calls.CallStatusBusy: true,
		calls.CallStatusNoAnswer: true, calls.CallStatusCanceled: true,
	}
	all := []calls.CallStatus{
		calls.CallStatusInitiated, calls.CallStatusRinging, calls.CallStatusAnswered, calls.CallStatusInProgress,
		calls.CallStatusCompleted, calls.CallStatusFailed, calls.CallStatusBusy, calls.CallStatusNoAnswer, calls.CallStatusCanceled,
	}

	s := NewMemoryStore()
	ctx := context.Background()
	// Start from an ended record so stale flags would show up.
	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusCompleted})

	for _, st := range all {
		rec, err := s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: st})
		if err != nil {
			t.Fatalf("upsert %s: %v", st, err)
		}
		if rec.IsAnswerEvent != answer[st] || rec.IsCallEnded != ended[st] {
			t.Fatalf("%s: answer=%v ended=%v", st, rec.IsAnswerEvent, rec.IsCallEnded)
		}
		if rec.IsAnswerEvent && rec.IsCallEnded {
			t.Fatalf("%s: both flags set", st)
		}
	}
}

func TestMemoryStore_OutboundScenarioEndsOnlyAtCompleted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seq := []calls.CallStatus{calls.CallStatusInitiated, calls.CallStatusRinging, calls.CallStatusAnswered, calls.CallStatusCompleted}
	for i, st := range seq {
		rec, _ := s.UpsertStatus(ctx, "CA123", StatusUpdate{Status: st, From: "+16195551234", To: "+16195555678"})
		last := i == len(seq)-1
		if rec.IsCallEnded != last {
			t.Fatalf("after %s: isCallEnded=%v", st, rec.IsCallEnded)
		}
	}
}

func TestMemoryStore_SubscribeSnapshotThenUpdates(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusRinging})

	sub, err := s.Subscribe(ctx, "CA1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := recv(t, sub)
	if first.Status != calls.CallStatusRinging {
		t.Fatalf("expected snapshot first, got %+v", first)
	}

	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusAnswered})
	next := recv(t, sub)
	if !next.IsAnswerEvent {
		t.Fatalf("expected answered update, got %+v", next)
	}
}

func TestMemoryStore_CloseRemovesSubscriber(t *testing.T) {
	s := NewMemoryStore()
	sub, err := s.Subscribe(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if s.Subscribers("CA1") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	_ = sub.Close()
	_ = sub.Close()
	if s.Subscribers("CA1") != 0 {
		t.Fatalf("expected subscriber removed")
	}
	if _, ok := <-sub.Updates(); ok {
		t.Fatalf("expected closed channel")
	}
	if _, err := s.UpsertStatus(context.Background(), "CA1", StatusUpdate{Status: calls.CallStatusRinging}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
}

func TestMemoryStore_SlowReaderGetsLatest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sub, _ := s.Subscribe(ctx, "CA1")
	defer sub.Close()

	for i := 0; i < subscriptionBuffer*2; i++ {
		_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusRinging})
	}
	_, _ = s.UpsertStatus(ctx, "CA1", StatusUpdate{Status: calls.CallStatusCompleted})

	var last CallRecord
	for len(sub.Updates()) > 0 {
		last = <-sub.Updates()
	}
	if last.Status != calls.CallStatusCompleted {
		t.Fatalf("expected latest state retained, got %+v", last)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	if _, err := NewMemoryStore().Get(context.Background(), "CA404"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func recv(t *testing.T, sub Subscription) CallRecord {
	t.Helper()
	select {
	case rec, ok := <-sub.Updates():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for update")
	}
	return CallRecord{}
}
