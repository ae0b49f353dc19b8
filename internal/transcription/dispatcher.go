package transcription

import (
	"context"
	"fmt"
	"time"

	"edu-crm/internal/ledger"
	"edu-crm/internal/metrics"
	"edu-crm/internal/queue"
	"edu-crm/pkg/logger"
)

const recordingCompleted = "completed"

type RecordingLedger interface {
	RecordRecording(ctx context.Context, callSid string, u ledger.RecordingUpdate) (ledger.CallRecord, error)
}

// Dispatcher handles recording status callbacks. Every status is written to
// the ledger; only "completed" schedules a transcription task. Enqueue
// failures are logged and counted but never returned: the provider retrying
// the webhook cannot fix our queue.
type Dispatcher struct {
	Ledger  RecordingLedger
	Queue   queue.Enqueuer
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewDispatcher(l RecordingLedger, q queue.Enqueuer, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{Ledger: l, Queue: q, Metrics: m, Now: time.Now}
}

// OnRecordingStatus reports whether a task was enqueued. A non-nil error
// means the ledger write failed; enqueueing is still attempted.
func (d *Dispatcher) OnRecordingStatus(ctx context.Context, callSid string, u ledger.RecordingUpdate) (bool, error) {
	log := logger.From(ctx).With("call_sid", callSid, "recording_status", u.Status)

	var ledgerErr error
	if _, err := d.Ledger.RecordRecording(ctx, callSid, u); err != nil {
		ledgerErr = fmt.Errorf("record recording: %w", err)
	}

	if u.Status != recordingCompleted {
		return false, ledgerErr
	}

	t := queue.Task{CallSid: callSid, RecordingSid: u.Sid, RecordingURL: u.URL, EnqueuedAt: d.now()}
	if err := d.Queue.Enqueue(ctx, t); err != nil {
		log.Error("transcription enqueue failed", "recording_sid", u.Sid, "err", err)
		d.Metrics.Enqueued("error")
		return false, ledgerErr
	}
	d.Metrics.Enqueued("ok")
	log.Info("transcription enqueued", "recording_sid", u.Sid)
	return true, ledgerErr
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}
