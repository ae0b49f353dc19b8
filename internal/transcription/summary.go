package transcription

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TodoDateLayout is the date format the model is asked to use for todos.
const TodoDateLayout = "2006-01-02 15:04"

// Summary is the structured output of the summarization model.
type Summary struct {
	Summary string `json:"summary"`
	Todos   []Todo `json:"todos"`
}

type Todo struct {
	Task string `json:"task"`
	Date string `json:"date"`
}

var ErrUnparseableSummary = errors.New("transcription: summary is not valid JSON")

// Message is one chat message sent to the language model.
type Message struct {
	Role    string
	Content string
}

// SummaryPrompt builds the messages asking for a JSON summary of transcript.
// "Today" is spelled out in loc so relative dates resolve against the
// salesperson's calendar rather than UTC.
func SummaryPrompt(transcript string, now time.Time, loc *time.Location) []Message {
	local := now.In(loc)
	system := fmt.Sprintf(`You summarize sales phone calls for a CRM.
Today is %s (%s). The current time is %s.
Respond with a single JSON object and nothing else, of the form:
{"summary": string, "todos": [{"task": string, "date": "YYYY-MM-DD HH:mm"}]}
"summary" is two to four sentences describing what was discussed.
"todos" lists concrete follow-up actions the salesperson committed to. Resolve
relative dates such as "next Tuesday" against today. If a todo has no explicit
date, use %q. Use an empty array when there are no follow-ups.`,
		local.Format("Monday, January 2, 2006"),
		loc.String(),
		local.Format("15:04"),
		local.Format(TodoDateLayout),
	)
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Transcript:\n" + transcript},
	}
}

// ParseSummary decodes the model's reply, tolerating surrounding whitespace,
// markdown code fences and prose around the object.
func ParseSummary(raw string) (Summary, error) {
	s := strings.TrimSpace(raw)
	s = stripFence(s)

	var out Summary
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		start := strings.Index(s, "{")
		end := strings.LastIndex(s, "}")
		if start < 0 || end <= start {
			return Summary{}, fmt.Errorf("%w: %v", ErrUnparseableSummary, err)
		}
		if err := json.Unmarshal([]byte(s[start:end+1]), &out); err != nil {
			return Summary{}, fmt.Errorf("%w: %v", ErrUnparseableSummary, err)
		}
	}
	out.Summary = strings.TrimSpace(out.Summary)
	return out, nil
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string, e.g. "json".
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// DueDate parses the todo's date in loc. Missing or unparseable dates fall
// back to now.
func (t Todo) DueDate(now time.Time, loc *time.Location) time.Time {
	raw := strings.TrimSpace(t.Date)
	if raw == "" {
		return now.In(loc)
	}
	for _, layout := range []string{TodoDateLayout, "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return d
		}
	}
	return now.In(loc)
}
