package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/workflow"
)

func TestOutboxDispatcher_PublishOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		publishErr  error
		maxAttempts int
		wantStatus  string
		wantRetry   bool
		wantMessage bool
	}{
		{name: "published", wantStatus: models.OutboxPublishStatusSent, wantMessage: true},
		{name: "retry later", publishErr: errors.New("broker down"), maxAttempts: 5, wantStatus: models.OutboxPublishStatusFailed, wantRetry: true},
		{name: "dead after max attempts", publishErr: errors.New("broker down"), maxAttempts: 1, wantStatus: models.OutboxPublishStatusDead},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			db := testutil.SetupDB(t, time.UTC)
			_, rec := seedJD(t, db)

			var published []config.MailMessage
			d := workflow.NewOutboxDispatcher(db, nil)
			d.MaxAttempts = c.maxAttempts
			d.Publish = func(_ context.Context, msg config.MailMessage) (string, error) {
				if c.publishErr != nil {
					return "", c.publishErr
				}
				published = append(published, msg)
				return "msg-1", nil
			}
			d.DispatchOnce(context.Background())

			var got models.MailOutbox
			if err := db.First(&got, rec.ID).Error; err != nil {
				t.Fatalf("reload outbox: %v", err)
			}
			if got.PublishStatus != c.wantStatus || got.PublishAttempts != 1 {
				t.Fatalf("status %s attempts %d, want %s after one attempt", got.PublishStatus, got.PublishAttempts, c.wantStatus)
			}
			if (got.NextAttemptAt != nil) != c.wantRetry {
				t.Fatalf("next_attempt_at = %v, retry expected %v", got.NextAttemptAt, c.wantRetry)
			}
			if c.wantMessage {
				if got.PubSubMessageId == nil || *got.PubSubMessageId != "msg-1" {
					t.Fatalf("message id not stored: %v", got.PubSubMessageId)
				}
				if len(published) != 1 || published[0].OutboxId != rec.ID || published[0].Kind != string(models.MailKindJD) {
					t.Fatalf("unexpected published payload: %+v", published)
				}
			}
			if got.LockedAt != nil {
				t.Fatalf("lock should be released")
			}
		})
	}
}

func TestOutboxDispatcher_SkipsSentRows(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	seedJD(t, db)

	calls := 0
	d := workflow.NewOutboxDispatcher(db, nil)
	d.Publish = func(context.Context, config.MailMessage) (string, error) {
		calls++
		return "msg", nil
	}
	ctx := context.Background()
	if n := d.DispatchOnce(ctx); n != 1 {
		t.Fatalf("first pass should publish one row, got %d", n)
	}
	if n := d.DispatchOnce(ctx); n != 0 || calls != 1 {
		t.Fatalf("sent rows must not be republished: n=%d calls=%d", n, calls)
	}
}
