package transcription

import "edu-crm/internal/queue"

// Outcome is the result of one processing attempt.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeNotFoundRetryable means the call log does not exist yet. The
	// recording callback raced ahead of the status callback that creates it.
	OutcomeNotFoundRetryable
	// OutcomeRetryable covers transient failures: media fetch, speech-to-text,
	// the language model, unparseable summaries, storage errors.
	OutcomeRetryable
	// OutcomeFatal means a retry cannot succeed.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFoundRetryable:
		return "not_found_retryable"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Disposition maps the outcome onto queue settlement.
func (o Outcome) Disposition() queue.Disposition {
	switch o {
	case OutcomeOK:
		return queue.Ack
	case OutcomeNotFoundRetryable, OutcomeRetryable:
		return queue.Retry
	default:
		return queue.Drop
	}
}

// Result carries the outcome with the error that caused it, if any.
type Result struct {
	Outcome   Outcome
	Err       error
	Reminders int
}
