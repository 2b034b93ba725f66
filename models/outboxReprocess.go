package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

// ReprocessMailOutbox puts an undelivered row back in both queues.
func ReprocessMailOutbox(ctx context.Context, id int) (*MailStatus, error) {
	now := time.Now().UTC()
	db := config.GetDB()

	res := db.WithContext(ctx).
		Model(&MailOutbox{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]interface{}{
			"locked_at":               nil,
			"locked_by":               nil,
			"publish_status":          OutboxPublishStatusPending,
			"next_attempt_at":         nil,
			"processing_status":       OutboxProcessStatusPending,
			"next_process_attempt_at": &now,
			"last_process_error":      nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	rec, err := GetMailOutbox(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMailStatus(*rec), nil
}
