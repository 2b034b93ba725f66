package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func queueStudentMail(t *testing.T, db *gorm.DB) *models.MailOutbox {
	t.Helper()
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	resume := models.StudentResume{UserId: &userID, StudentName: testutil.Ptr("Neha"), EmailId: testutil.Ptr("neha@example.com"), IsActive: true}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	rec, err := models.RequestStudentMail(context.Background(), resume.ID)
	if err != nil {
		t.Fatalf("RequestStudentMail: %v", err)
	}
	return rec
}

func TestOutboxDirectProcessor_Delivers(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	rec := queueStudentMail(t, db)

	var seen []int
	p := NewOutboxDirectProcessor(db, config.GetLogger())
	p.Process = func(ctx context.Context, logger *logrus.Logger, m config.MailMessage) error {
		seen = append(seen, m.OutboxId)
		return nil
	}

	if n := p.processOnce(context.Background()); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
	if len(seen) != 1 || seen[0] != rec.ID {
		t.Fatalf("expected outbox %d, got %v", rec.ID, seen)
	}
	if n := p.processOnce(context.Background()); n != 0 {
		t.Fatalf("processed row should not be claimed again, got %d", n)
	}

	var got models.MailOutbox
	if err := db.First(&got, rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.IsProcessed || got.ProcessingStatus != models.OutboxProcessStatusSucceeded || got.LockedAt != nil {
		t.Fatalf("unexpected row after success: %+v", got)
	}
}

func TestOutboxDirectProcessor_FailureBacksOff(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	rec := queueStudentMail(t, db)

	calls := 0
	p := NewOutboxDirectProcessor(db, config.GetLogger())
	p.Process = func(ctx context.Context, logger *logrus.Logger, m config.MailMessage) error {
		calls++
		return errors.New("smtp down")
	}

	if n := p.processOnce(context.Background()); n != 0 {
		t.Fatalf("failed delivery should not count, got %d", n)
	}
	var got models.MailOutbox
	if err := db.First(&got, rec.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ProcessingStatus != models.OutboxProcessStatusFailed || got.ProcessAttempts != 1 || got.NextProcessAttemptAt == nil {
		t.Fatalf("unexpected row after failure: %+v", got)
	}
	if got.LastProcessError == nil || *got.LastProcessError != "smtp down" {
		t.Fatalf("expected last error to be recorded, got %v", got.LastProcessError)
	}

	// next attempt is in the future
	p.processOnce(context.Background())
	if calls != 1 {
		t.Fatalf("row should wait for its backoff, got %d calls", calls)
	}
}

func TestOutboxProcessBackoff(t *testing.T) {
	cfg := outboxProcessRetryConfig{maxAttempts: 6, baseBackoff: 5 * time.Second, maxBackoff: time.Minute}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{9, time.Minute},
	}
	for _, c := range cases {
		if got := outboxProcessBackoff(c.attempt, cfg); got != c.want {
			t.Fatalf("attempt %d: got %s want %s", c.attempt, got, c.want)
		}
	}
}
