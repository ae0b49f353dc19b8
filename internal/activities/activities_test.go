package activities

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestActivityNormalize_CompletedSetsCompletedAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC)
	a := Activity{Title: "Call", Type: ActivityTypeCall, Status: ActivityStatusCompleted, ProspectID: "p1"}
	if err := a.Normalize(now); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if a.CompletedAt == nil || !a.CompletedAt.Equal(now) {
		t.Fatalf("expected completedAt=now, got %v", a.CompletedAt)
	}
	if !a.DueDate.Equal(now) {
		t.Fatalf("expected dueDate default now, got %v", a.DueDate)
	}
}

func TestActivityNormalize_KeepsExistingCompletedAt(t *testing.T) {
	earlier := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	a := Activity{Title: "Call", Type: ActivityTypeCall, Status: ActivityStatusCompleted, ProspectID: "p1", CompletedAt: &earlier}
	if err := a.Normalize(time.Now()); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !a.CompletedAt.Equal(earlier) {
		t.Fatalf("completedAt overwritten")
	}
}

func TestActivityNormalize_Rejects(t *testing.T) {
	cases := []Activity{
		{Type: ActivityTypeCall, ProspectID: "p1"},
		{Title: "x", Type: "Fax", ProspectID: "p1"},
		{Title: "x", Type: ActivityTypeNote},
		{Title: "x", Type: ActivityTypeNote, ProspectID: "p1", Status: "Done"},
	}
	for i, a := range cases {
		if err := a.Normalize(time.Now()); !errors.Is(err, ErrInvalidActivity) {
			t.Fatalf("case %d: expected ErrInvalidActivity, got %v", i, err)
		}
	}
}

func TestMemoryRepo_ReminderIdempotentByID(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	rem := Reminder{ID: "r1", Title: "Send brochure", Type: ReminderTypeOther, ProspectID: "p1", AddedBy: "sp-1", IsActive: true}

	created, err := repo.CreateReminder(ctx, rem)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}
	created, err = repo.CreateReminder(ctx, rem)
	if err != nil || created {
		t.Fatalf("second create: created=%v err=%v", created, err)
	}

	list, _ := repo.ListReminders(ctx, "p1")
	if len(list) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(list))
	}
	if list[0].Status != ReminderStatusPending {
		t.Fatalf("expected pending default, got %q", list[0].Status)
	}
}

func TestMemoryRepo_UpdateDescription(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	a, err := repo.CreateActivity(ctx, Activity{Title: "Call", Type: ActivityTypeCall, ProspectID: "p1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.UpdateActivityDescription(ctx, a.ID, "Discussed enrollment"); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := repo.GetActivity(ctx, a.ID)
	if got.Description != "Discussed enrollment" {
		t.Fatalf("unexpected description %q", got.Description)
	}
	if err := repo.UpdateActivityDescription(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
