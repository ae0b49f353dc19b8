package ledger

import (
	"strconv"
	"time"

	"edu-crm/internal/calls"
)

// Records are stored as flat string fields so the Redis hash and the memory
// store merge identically.
const (
	fieldStatus          = "status"
	fieldFrom            = "from"
	fieldTo              = "to"
	fieldDirection       = "direction"
	fieldUserID          = "user_id"
	fieldProspectID      = "prospect_id"
	fieldDuration        = "duration_seconds"
	fieldIsAnswerEvent   = "is_answer_event"
	fieldIsCallEnded     = "is_call_ended"
	fieldRecordingStatus = "recording_status"
	fieldRecordingURL    = "recording_url"
	fieldRecordingSid    = "recording_sid"
	fieldUpdatedAt       = "updated_at"
)

// statusFields encodes a status write. The derived flags are computed from
// the incoming status only, never from what is stored.
func statusFields(u StatusUpdate, now time.Time) map[string]string {
	f := map[string]string{
		fieldStatus:        string(u.Status),
		fieldIsAnswerEvent: boolField(u.Status.IsAnswer()),
		fieldIsCallEnded:   boolField(u.Status.IsTerminal()),
		fieldUpdatedAt:     now.UTC().Format(time.RFC3339Nano),
	}
	if u.From != "" {
		f[fieldFrom] = u.From
	}
	if u.To != "" {
		f[fieldTo] = u.To
	}
	if u.Direction != "" {
		f[fieldDirection] = string(u.Direction)
	}
	if u.UserID != "" {
		f[fieldUserID] = u.UserID
	}
	if u.ProspectID != "" {
		f[fieldProspectID] = u.ProspectID
	}
	if u.DurationSeconds > 0 {
		f[fieldDuration] = strconv.Itoa(u.DurationSeconds)
	}
	return f
}

func recordingFields(u RecordingUpdate, now time.Time) map[string]string {
	f := map[string]string{
		fieldRecordingStatus: u.Status,
		fieldUpdatedAt:       now.UTC().Format(time.RFC3339Nano),
	}
	if u.URL != "" {
		f[fieldRecordingURL] = u.URL
	}
	if u.Sid != "" {
		f[fieldRecordingSid] = u.Sid
	}
	return f
}

func decodeRecord(callSid string, f map[string]string) CallRecord {
	rec := CallRecord{
		CallSid:         callSid,
		Status:          calls.CallStatus(f[fieldStatus]),
		From:            f[fieldFrom],
		To:              f[fieldTo],
		Direction:       calls.Direction(f[fieldDirection]),
		UserID:          f[fieldUserID],
		ProspectID:      f[fieldProspectID],
		IsAnswerEvent:   f[fieldIsAnswerEvent] == "1",
		IsCallEnded:     f[fieldIsCallEnded] == "1",
		RecordingStatus: f[fieldRecordingStatus],
		RecordingURL:    f[fieldRecordingURL],
		RecordingSid:    f[fieldRecordingSid],
	}
	if d, err := strconv.Atoi(f[fieldDuration]); err == nil {
		rec.DurationSeconds = d
	}
	if ts, err := time.Parse(time.RFC3339Nano, f[fieldUpdatedAt]); err == nil {
		rec.UpdatedAt = ts
	}
	return rec
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
