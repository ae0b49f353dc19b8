package transcription

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"edu-crm/internal/activities"
	"edu-crm/internal/calls"
	"edu-crm/internal/metrics"
	"edu-crm/internal/queue"
	"edu-crm/internal/telephony"
	"edu-crm/pkg/logger"

	"github.com/google/uuid"
)

type AudioFetcher interface {
	FetchRecording(ctx context.Context, recordingURL string) (telephony.Audio, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio telephony.Audio) (string, error)
}

type LanguageModel interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

type CallLogs interface {
	FindByAnyLeg(ctx context.Context, callSid string) (calls.CallLog, error)
	SetTranscription(ctx context.Context, callSid, transcription string) error
}

// reminderNamespace scopes reminder ids derived from call sids.
var reminderNamespace = uuid.MustParse("6f1c2a57-3b7e-4c55-9a43-0d2f5e8b7c11")

// Worker turns a call recording into a transcription, an activity summary and
// follow-up reminders.
type Worker struct {
	Logs       CallLogs
	Activities activities.Repository
	Audio      AudioFetcher
	STT        Transcriber
	LLM        LanguageModel
	Location   *time.Location
	Timeout    time.Duration
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Process runs one task. The call log is checked before any paid API call so
// that a task racing ahead of its status callback retries cheaply.
func (w *Worker) Process(ctx context.Context, t queue.Task) Result {
	log := logger.From(ctx).With("call_sid", t.CallSid)

	if err := t.Validate(); err != nil {
		return Result{Outcome: OutcomeFatal, Err: err}
	}

	callLog, err := w.Logs.FindByAnyLeg(ctx, t.CallSid)
	if errors.Is(err, calls.ErrNotFound) {
		return Result{Outcome: OutcomeNotFoundRetryable, Err: fmt.Errorf("call log for %s: %w", t.CallSid, err)}
	}
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("find call log: %w", err)}
	}
	act, err := w.Activities.GetActivity(ctx, callLog.ActivityID)
	if errors.Is(err, activities.ErrNotFound) {
		return Result{Outcome: OutcomeFatal, Err: fmt.Errorf("activity %s linked to %s: %w", callLog.ActivityID, callLog.CallSid, err)}
	}
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("get activity: %w", err)}
	}

	audio, err := w.Audio.FetchRecording(ctx, t.RecordingURL)
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: err}
	}
	text, err := w.STT.Transcribe(ctx, audio)
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("transcribe: %w", err)}
	}

	now := w.now()
	raw, err := w.LLM.Complete(ctx, SummaryPrompt(text, now, w.location()))
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("summarize: %w", err)}
	}
	sum, err := ParseSummary(raw)
	if err != nil {
		return Result{Outcome: OutcomeRetryable, Err: err}
	}

	if err := w.Logs.SetTranscription(ctx, callLog.CallSid, text); err != nil {
		return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("save transcription: %w", err)}
	}
	if sum.Summary != "" {
		if err := w.Activities.UpdateActivityDescription(ctx, act.ID, sum.Summary); err != nil {
			return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("save summary: %w", err)}
		}
	}

	created := 0
	for i, todo := range sum.Todos {
		if todo.Task == "" {
			continue
		}
		rem := activities.Reminder{
			ID:          reminderID(callLog.CallSid, i),
			Title:       todo.Task,
			Description: "Follow-up from call " + callLog.CallSid,
			Type:        activities.ReminderTypeOther,
			Status:      activities.ReminderStatusPending,
			DueDate:     todo.DueDate(now, w.location()),
			ProspectID:  act.ProspectID,
			AddedBy:     act.AddedBy,
			IsActive:    true,
		}
		ok, err := w.Activities.CreateReminder(ctx, rem)
		if err != nil {
			return Result{Outcome: OutcomeRetryable, Err: fmt.Errorf("create reminder %d: %w", i, err), Reminders: created}
		}
		if ok {
			created++
		}
	}

	log.Info("transcription processed", "activity_id", act.ID, "todos", len(sum.Todos), "reminders_created", created)
	return Result{Outcome: OutcomeOK, Reminders: created}
}

// Handle adapts Process to a queue consumer.
func (w *Worker) Handle(ctx context.Context, t queue.Task, attempt int) queue.Disposition {
	log := logger.From(ctx).With("call_sid", t.CallSid, "attempt", attempt)
	ctx = logger.With(ctx, log)
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := w.Process(ctx, t)
	w.Metrics.TaskFinished(res.Outcome.String(), time.Since(start))

	switch res.Outcome {
	case OutcomeOK:
	case OutcomeFatal:
		log.Error("transcription task failed permanently", "err", res.Err)
	default:
		log.Warn("transcription task failed", "outcome", res.Outcome.String(), "err", res.Err)
	}
	return res.Outcome.Disposition()
}

// reminderID is stable per call and todo position so a redelivered task
// does not duplicate reminders it already created.
func reminderID(callSid string, i int) string {
	return uuid.NewSHA1(reminderNamespace, []byte(callSid+"/todo/"+strconv.Itoa(i))).String()
}

func (w *Worker) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}
