package main

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/mmdatafocus/hrcrm_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor delivers queued mails without Pub/Sub.
// It runs when MAIL_DIRECT_PROCESSING=true (local/dev, or when push delivery is down).
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
	// Process delivers one message; defaults to ProcessMessage.
	Process func(ctx context.Context, logger *logrus.Logger, m config.MailMessage) error
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 20,
		Interval:  5 * time.Second,
		LockTTL:   2 * time.Minute,
		Process:   ProcessMessage,
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.processOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

func (p *OutboxDirectProcessor) claim(ctx context.Context, now time.Time) ([]models.MailOutbox, error) {
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.MailOutbox
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ?", false).
			Where("processing_status <> ?", models.OutboxProcessStatusDead).
			Where("(next_process_attempt_at IS NULL OR next_process_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize)
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &p.WorkerID
			if err := tx.Model(&models.MailOutbox{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at": claimed[i].LockedAt,
					"locked_by": claimed[i].LockedBy,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (p *OutboxDirectProcessor) processOnce(ctx context.Context) int {
	claimed, err := p.claim(ctx, time.Now().UTC())
	if err != nil {
		config.LogError(p.Logger, "outbox_direct_processor.go", "processOnce", "claim", p.WorkerID, err)
		return 0
	}

	process := p.Process
	if process == nil {
		process = ProcessMessage
	}
	delivered := 0
	for _, rec := range claimed {
		msg := models.ConvertToMailMessage(rec)
		procCtx := utils.SetUserIdInContext(ctx, 0)
		procCtx = utils.SetUserNameInContext(procCtx, "System")
		procCtx = utils.SetCorrelationIdInContext(procCtx, rec.CorrelationId)

		markOutboxProcessing(procCtx, rec.ID)
		if err := process(procCtx, p.Logger, msg); err != nil {
			if errors.Is(err, workflow.ErrMailOutboxMissing) {
				continue
			}
			markOutboxProcessFailure(procCtx, p.Logger, msg, err)
			continue
		}
		markOutboxProcessSuccess(procCtx, p.Logger, msg)
		delivered++
	}
	return delivered
}
