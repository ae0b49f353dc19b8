package transcription

import (
	"context"
	"errors"
	"testing"

	"edu-crm/internal/ledger"
	"edu-crm/internal/queue"
)

func TestDispatcher_InProgressOnlyWritesLedger(t *testing.T) {
	store := ledger.NewMemoryStore()
	q := queue.NewMemory()
	d := NewDispatcher(store, q, nil)

	enqueued, err := d.OnRecordingStatus(context.Background(), "CA1", ledger.RecordingUpdate{Status: "in-progress", Sid: "RE1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if enqueued || len(q.Tasks()) != 0 {
		t.Fatalf("in-progress must not enqueue")
	}
	rec, err := store.Get(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.RecordingStatus != "in-progress" || rec.RecordingSid != "RE1" {
		t.Fatalf("unexpected ledger record %+v", rec)
	}
}

func TestDispatcher_CompletedEnqueues(t *testing.T) {
	store := ledger.NewMemoryStore()
	q := queue.NewMemory()
	d := NewDispatcher(store, q, nil)

	// Status first, recording second: the status must survive the merge.
	if _, err := store.UpsertStatus(context.Background(), "CA1", ledger.StatusUpdate{Status: "completed"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	enqueued, err := d.OnRecordingStatus(context.Background(), "CA1", ledger.RecordingUpdate{Status: "completed", URL: "https://api.twilio.com/RE1", Sid: "RE1"})
	if err != nil || !enqueued {
		t.Fatalf("expected enqueue, got %v %v", enqueued, err)
	}
	tasks := q.Tasks()
	if len(tasks) != 1 || tasks[0].CallSid != "CA1" || tasks[0].RecordingURL != "https://api.twilio.com/RE1" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	rec, _ := store.Get(context.Background(), "CA1")
	if rec.Status != "completed" || rec.RecordingURL != "https://api.twilio.com/RE1" {
		t.Fatalf("merge lost a field: %+v", rec)
	}
}

func TestDispatcher_FailedStatusDoesNotEnqueue(t *testing.T) {
	q := queue.NewMemory()
	d := NewDispatcher(ledger.NewMemoryStore(), q, nil)
	if enqueued, _ := d.OnRecordingStatus(context.Background(), "CA1", ledger.RecordingUpdate{Status: "failed"}); enqueued {
		t.Fatalf("failed recording must not enqueue")
	}
	if len(q.Tasks()) != 0 {
		t.Fatalf("unexpected tasks")
	}
}

func TestDispatcher_EnqueueFailureSwallowed(t *testing.T) {
	store := ledger.NewMemoryStore()
	q := queue.NewMemory()
	q.Err = errors.New("broker down")
	d := NewDispatcher(store, q, nil)

	enqueued, err := d.OnRecordingStatus(context.Background(), "CA1", ledger.RecordingUpdate{Status: "completed", URL: "https://api.twilio.com/RE1"})
	if err != nil {
		t.Fatalf("enqueue failure must not surface, got %v", err)
	}
	if enqueued {
		t.Fatalf("expected enqueued=false")
	}
	if _, err := store.Get(context.Background(), "CA1"); err != nil {
		t.Fatalf("ledger must still be written: %v", err)
	}
}
