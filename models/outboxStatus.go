package models

import "time"

// OutboxPostingStatus is the delivery-side status exposed to the UI.
// It intentionally does not include publish states like SENT.
type OutboxPostingStatus string

const (
	OutboxPostingStatusPending    OutboxPostingStatus = "PENDING"
	OutboxPostingStatusProcessing OutboxPostingStatus = "PROCESSING"
	OutboxPostingStatusFailed     OutboxPostingStatus = "FAILED"
	OutboxPostingStatusDead       OutboxPostingStatus = "DEAD"
	OutboxPostingStatusSucceeded  OutboxPostingStatus = "SUCCEEDED"
)

// MailStatus is a UI-facing view of the latest outbox row of a record.
type MailStatus struct {
	RecordId             int                 `json:"recordId"`
	Kind                 MailKind            `json:"kind"`
	ReferenceType        string              `json:"referenceType"`
	ReferenceId          int                 `json:"referenceId"`
	Recipient            string              `json:"recipient"`
	PublishStatus        string              `json:"publishStatus"`
	ProcessingStatus     OutboxPostingStatus `json:"processingStatus"`
	IsProcessed          bool                `json:"isProcessed"`
	PublishAttempts      int                 `json:"publishAttempts"`
	ProcessAttempts      int                 `json:"processAttempts"`
	NextAttemptAt        *time.Time          `json:"nextAttemptAt"`
	NextProcessAttemptAt *time.Time          `json:"nextProcessAttemptAt"`
	LastPublishError     *string             `json:"lastPublishError"`
	LastProcessError     *string             `json:"lastProcessError"`
	CreatedAt            time.Time           `json:"createdAt"`
	PublishedAt          *time.Time          `json:"publishedAt"`
	ProcessedAt          *time.Time          `json:"processedAt"`
}
