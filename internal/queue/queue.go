package queue

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
)

// Task asks the worker to transcribe one call recording.
type Task struct {
	CallSid      string    `json:"call_sid"`
	RecordingSid string    `json:"recording_sid,omitempty"`
	RecordingURL string    `json:"recording_url"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

var ErrInvalidTask = errors.New("queue: call_sid and recording_url are required")

func (t Task) Validate() error {
	if strings.TrimSpace(t.CallSid) == "" || strings.TrimSpace(t.RecordingURL) == "" {
		return ErrInvalidTask
	}
	return nil
}

// DedupID identifies the task for broker-side deduplication of redelivered
// recording webhooks.
func (t Task) DedupID() string {
	ref := t.RecordingSid
	if ref == "" {
		ref = t.RecordingURL
	}
	return "transcribe:" + t.CallSid + ":" + ref
}

// Enqueuer submits tasks. Enqueue returns once the broker has accepted the
// task; processing happens elsewhere.
type Enqueuer interface {
	Enqueue(ctx context.Context, t Task) error
}

// Disposition tells the consumer what to do with a delivered task.
type Disposition int

const (
	Ack Disposition = iota
	Retry
	Drop
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case Drop:
		return "drop"
	default:
		return "unknown"
	}
}

// Slots caps in-flight tasks across consumer processes. Acquire reports false
// when every slot is taken; the token it returns is handed back to Release.
type Slots interface {
	Acquire(ctx context.Context) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// Handler processes one delivery. attempt starts at 1.
type Handler func(ctx context.Context, t Task, attempt int) Disposition

// Backoff is the redelivery delay policy: Initial * Factor^(attempt-1), capped at Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: 15 * time.Second, Max: 10 * time.Minute, Factor: 2}
}

func (b Backoff) Delay(attempt int) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	exp := math.Max(float64(attempt-1), 0)
	d := float64(b.Initial) * math.Pow(factor, exp)
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
