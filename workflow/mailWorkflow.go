package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MailHandlerName scopes the idempotency keys of mail delivery.
const MailHandlerName = "mail"

// ErrMailOutboxMissing means the message points at an outbox row that no longer exists.
// Redelivering it cannot succeed, so push handlers ack it.
var ErrMailOutboxMissing = errors.New("mail outbox record not found")

// MailDeps are the outside services a delivery needs.
type MailDeps struct {
	Store  utils.ObjectStore
	Mailer config.MailSender
	Now    func() time.Time
}

func (d MailDeps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// DefaultMailDeps wires GCS and the SMTP mailer from settings.
func DefaultMailDeps() (MailDeps, error) {
	mailer, err := config.GetMailer()
	if err != nil {
		return MailDeps{}, err
	}
	return MailDeps{Store: utils.GCSObjectStore{}, Mailer: mailer}, nil
}

// DeliverMailMessage sends the mail behind m exactly once per outbox row. A row
// that was already delivered is skipped.
func DeliverMailMessage(ctx context.Context, db *gorm.DB, logger *logrus.Logger, m config.MailMessage, deps MailDeps) error {
	if m.OutboxId <= 0 {
		return fmt.Errorf("mail message without outbox id: %w", ErrMailOutboxMissing)
	}
	messageId := strconv.Itoa(m.OutboxId)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, MailHandlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}
		if err := ProcessMailWorkflow(ctx, tx, logger, m, deps); err != nil {
			_ = MarkIdempotencyFailed(tx, MailHandlerName, messageId, err)
			return err
		}
		return MarkIdempotencySucceeded(tx, MailHandlerName, messageId)
	})
}

// ProcessMailWorkflow loads the outbox row, sends it with its attachment and
// records the delivery on the row and on the record it refers to.
func ProcessMailWorkflow(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, m config.MailMessage, deps MailDeps) error {
	var rec models.MailOutbox
	if err := tx.WithContext(ctx).First(&rec, m.OutboxId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMailOutboxMissing
		}
		return err
	}
	if rec.IsProcessed {
		return nil
	}
	if deps.Mailer == nil {
		return errors.New("no mailer configured")
	}

	mail := config.Mail{To: rec.Recipient, Subject: rec.Subject, HTML: rec.Body}
	if rec.AttachmentKey != nil && *rec.AttachmentKey != "" {
		if deps.Store == nil {
			return errors.New("no object store configured for attachments")
		}
		data, err := deps.Store.Get(ctx, utils.DereferencePtr(rec.AttachmentBucket), *rec.AttachmentKey)
		if err != nil {
			return fmt.Errorf("load attachment %s: %w", *rec.AttachmentKey, err)
		}
		name := utils.DereferencePtr(rec.AttachmentName, *rec.AttachmentKey)
		mail.Attachments = append(mail.Attachments, config.MailAttachment{FileName: name, Content: data})
	}

	if err := deps.Mailer.Send(mail); err != nil {
		return fmt.Errorf("send %s mail: %w", rec.Kind, err)
	}
	sentAt := deps.now()

	switch rec.Kind {
	case models.MailKindJD:
		if err := models.MarkJDSent(ctx, tx, rec.ReferenceId, sentAt); err != nil {
			return err
		}
	case models.MailKindStudent:
		if err := models.MarkStudentMailSent(ctx, tx, rec.ReferenceId, sentAt); err != nil {
			return err
		}
	}

	if err := tx.WithContext(ctx).Model(&models.MailOutbox{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"is_processed":      true,
			"processed_at":      &sentAt,
			"processing_status": models.OutboxProcessStatusSucceeded,
		}).Error; err != nil {
		return err
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "MailWorkflow",
			"kind":           rec.Kind,
			"reference_type": rec.ReferenceType,
			"reference_id":   rec.ReferenceId,
			"record_id":      rec.ID,
			"correlation_id": rec.CorrelationId,
		}).Info("mail delivered")
	}
	return nil
}
