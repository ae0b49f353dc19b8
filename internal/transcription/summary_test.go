package transcription

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseSummary_Tolerant(t *testing.T) {
	cases := map[string]string{
		"plain":      `{"summary":"Discussed enrollment","todos":[{"task":"Send brochure","date":"2024-05-01 10:00"}]}`,
		"whitespace": "\n\t  {\"summary\":\"Discussed enrollment\",\"todos\":[{\"task\":\"Send brochure\",\"date\":\"2024-05-01 10:00\"}]}  \n",
		"fenced":     "```json\n{\"summary\":\"Discussed enrollment\",\"todos\":[{\"task\":\"Send brochure\",\"date\":\"2024-05-01 10:00\"}]}\n```",
		"bare fence": "```\n{\"summary\":\"Discussed enrollment\",\"todos\":[{\"task\":\"Send brochure\",\"date\":\"2024-05-01 10:00\"}]}\n```",
		"prose":      "Here you go:\n{\"summary\":\"Discussed enrollment\",\"todos\":[{\"task\":\"Send brochure\",\"date\":\"2024-05-01 10:00\"}]}\nThanks!",
	}
	for name, raw := range cases {
		s, err := ParseSummary(raw)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.Summary != "Discussed enrollment" || len(s.Todos) != 1 || s.Todos[0].Task != "Send brochure" {
			t.Fatalf("%s: unexpected summary %+v", name, s)
		}
	}
}

func TestParseSummary_Garbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{not json}"} {
		if _, err := ParseSummary(raw); !errors.Is(err, ErrUnparseableSummary) {
			t.Fatalf("%q: expected ErrUnparseableSummary, got %v", raw, err)
		}
	}
}

func TestTodoDueDate(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2024, 4, 20, 18, 30, 0, 0, time.UTC)

	got := Todo{Date: "2024-05-01 10:00"}.DueDate(now, loc)
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, loc); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := (Todo{}).DueDate(now, loc); !got.Equal(now) || got.Location() != loc {
		t.Fatalf("missing date should default to now in loc, got %v", got)
	}
	if got := (Todo{Date: "someday"}).DueDate(now, loc); !got.Equal(now) {
		t.Fatalf("unparseable date should default to now, got %v", got)
	}
}

func TestSummaryPrompt_AnchorsToday(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 02:00 UTC on May 2 is still May 1 in Pacific time.
	now := time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC)
	msgs := SummaryPrompt("hello", now, loc)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Wednesday, May 1, 2024") || !strings.Contains(msgs[0].Content, `"2024-05-01 19:00"`) {
		t.Fatalf("prompt not anchored to pacific today: %s", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "hello") {
		t.Fatalf("transcript missing from prompt")
	}
}
