package models_test

import (
	"context"
	"testing"

	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
)

func TestIntegration_ConcurrentTargetUpsertsKeepOneRow(t *testing.T) {
	db := testutil.SetupIntegration(t)
	ctx := context.Background()
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")

	errs := make(chan error, 8)
	for i := 1; i <= 8; i++ {
		calls := i
		go func() {
			_, err := models.UpsertTarget(ctx, &models.NewTarget{
				UserId:       userID,
				TargetDate:   "2025-03-05",
				TargetFields: models.TargetFields{Calls: &calls},
			})
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("UpsertTarget: %v", err)
		}
	}

	var count int64
	if err := db.Model(&models.MyTarget{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one target row, got %d", count)
	}
}
