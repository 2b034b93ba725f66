package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

// MailOutbox is the transactional outbox of outgoing mail. Rows are written in
// the caller's transaction and published to Pub/Sub by the dispatcher after commit.
type MailOutbox struct {
	ID               int       `gorm:"primary_key;index:idx_mail_dispatch,priority:3" json:"id"`
	Kind             MailKind  `gorm:"size:20;not null;index" json:"kind"`
	ReferenceType    string    `gorm:"size:30;not null;index:idx_mail_ref,priority:1" json:"referenceType"`
	ReferenceId      int       `gorm:"not null;index:idx_mail_ref,priority:2" json:"referenceId"`
	Recipient        string    `gorm:"size:255;not null" json:"recipient"`
	Subject          string    `gorm:"size:255;not null" json:"subject"`
	Body             string    `gorm:"type:text" json:"body"`
	AttachmentBucket *string   `gorm:"size:255" json:"attachmentBucket"`
	AttachmentKey    *string   `gorm:"size:255" json:"attachmentKey"`
	AttachmentName   *string   `gorm:"size:255" json:"attachmentName"`
	RequestedBy      int       `gorm:"not null;default:0" json:"requestedBy"`
	RequestedAt      time.Time `gorm:"not null" json:"requestedAt"`
	IsProcessed      bool      `gorm:"index;not null" json:"isProcessed"`
	// publish side (dispatcher)
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_mail_dispatch,priority:1" json:"publishStatus"`
	PublishedAt      *time.Time `gorm:"index" json:"publishedAt"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsubMessageId"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publishAttempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_mail_dispatch,priority:2" json:"nextAttemptAt"`
	LockedAt         *time.Time `gorm:"index" json:"lockedAt"`
	LockedBy         *string    `gorm:"size:100" json:"lockedBy"`
	LastPublishError *string    `gorm:"type:text" json:"lastPublishError"`
	// delivery side (push handler / direct processor)
	ProcessingStatus     string     `gorm:"size:20;index;not null;default:'PENDING'" json:"processingStatus"`
	ProcessAttempts      int        `gorm:"not null;default:0" json:"processAttempts"`
	NextProcessAttemptAt *time.Time `gorm:"index" json:"nextProcessAttemptAt"`
	LastProcessError     *string    `gorm:"type:text" json:"lastProcessError"`
	ProcessedAt          *time.Time `gorm:"index" json:"processedAt"`
	CorrelationId        string     `gorm:"size:64;index" json:"correlationId"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// EnqueueMail writes rec inside tx. Nothing is published here.
func EnqueueMail(ctx context.Context, tx *gorm.DB, rec *MailOutbox) error {
	rec.Recipient = strings.ToLower(strings.TrimSpace(rec.Recipient))
	if !utils.IsValidEmail(rec.Recipient) {
		return utils.NewFieldError("email", "invalid recipient email %q", rec.Recipient)
	}
	if rec.Kind == "" || rec.ReferenceType == "" {
		return errors.New("mail kind and reference type are required")
	}
	if rec.RequestedBy == 0 {
		if userId, ok := utils.GetUserIdFromContext(ctx); ok {
			rec.RequestedBy = userId
		}
	}
	rec.RequestedAt = time.Now().UTC()
	rec.IsProcessed = false
	rec.PublishStatus = OutboxPublishStatusPending
	rec.ProcessingStatus = OutboxProcessStatusPending
	rec.CorrelationId = correlationIdFromContextOrNew(ctx)
	return tx.WithContext(ctx).Create(rec).Error
}

func ConvertToMailMessage(rec MailOutbox) config.MailMessage {
	return config.MailMessage{
		OutboxId:      rec.ID,
		Kind:          string(rec.Kind),
		ReferenceType: rec.ReferenceType,
		ReferenceId:   rec.ReferenceId,
		Recipient:     rec.Recipient,
		RequestedBy:   rec.RequestedBy,
		RequestedAt:   rec.RequestedAt,
		CorrelationId: rec.CorrelationId,
	}
}

func GetMailOutbox(ctx context.Context, id int) (*MailOutbox, error) {
	return utils.FetchSingleModel[MailOutbox](ctx, id)
}
