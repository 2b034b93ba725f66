package models

// Outbox publish statuses for MailOutbox.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// Outbox processing statuses for MailOutbox.ProcessingStatus.
// These represent delivery-side handling state (distinct from PublishStatus).
const (
	OutboxProcessStatusPending    = "PENDING"
	OutboxProcessStatusProcessing = "PROCESSING"
	OutboxProcessStatusSucceeded  = "SUCCEEDED"
	OutboxProcessStatusFailed     = "FAILED"
	OutboxProcessStatusDead       = "DEAD"
)

type MailKind string

const (
	MailKindJD      MailKind = "JD"
	MailKindStudent MailKind = "STUDENT"
	MailKindWelcome MailKind = "WELCOME"
)

// Reference types a mail can point back to.
const (
	MailReferenceCoSheet       = "cosheet"
	MailReferenceStudentResume = "student_resume"
	MailReferenceUser          = "user"
)
