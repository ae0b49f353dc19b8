package activities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresRepo_CreateReminderConflictIsNotCreated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO reminders").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPostgresRepo(db)
	created, err := repo.CreateReminder(context.Background(), Reminder{
		ID: "r1", Title: "Send brochure", Type: ReminderTypeOther, ProspectID: "p1", AddedBy: "sp-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created {
		t.Fatalf("expected conflict to report not created")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_InsertActivitySetsCompletedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO activities").
		WithArgs(sqlmock.AnyArg(), "Outbound call", "", "Call", "Completed", now, sqlmock.AnyArg(), "p1", "sp-1", true, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	a, err := InsertActivity(context.Background(), db, Activity{
		Title: "Outbound call", Type: ActivityTypeCall, Status: ActivityStatusCompleted,
		ProspectID: "p1", AddedBy: "sp-1", IsActive: true,
	}, now)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if a.ID == "" || a.CompletedAt == nil {
		t.Fatalf("expected id and completedAt, got %+v", a)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_UpdateDescriptionMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE activities").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgresRepo(db).UpdateActivityDescription(context.Background(), "a1", "summary")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
