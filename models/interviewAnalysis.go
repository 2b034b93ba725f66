package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InterviewAnalysis is the number of interviews allotted to a user for one month.
type InterviewAnalysis struct {
	ID                      int       `gorm:"primary_key" json:"id"`
	UserId                  int       `gorm:"not null;uniqueIndex:uniq_interview_user_month,priority:1" json:"userId"`
	TotalInterviewsAllotted int       `gorm:"not null;default:0" json:"totalInterviewsAllotted"`
	Month                   time.Time `gorm:"type:date;not null;uniqueIndex:uniq_interview_user_month,priority:2" json:"month"`
	IsActive                bool      `gorm:"not null;default:true" json:"isActive"`
	User                    *User     `gorm:"foreignKey:UserId" json:"-"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type InterviewAnalysisInput struct {
	UserId                  int    `json:"userId" binding:"required"`
	TotalInterviewsAllotted *int   `json:"totalInterviewsAllotted" binding:"required"`
	Month                   string `json:"month" binding:"required"`
}

// monthStart accepts YYYY-MM or any date inside the month.
func monthStart(s string) (time.Time, error) {
	if m, err := analysis.ParseMonth(s); err == nil {
		return m, nil
	}
	d, err := parseCivilDate("month", &s)
	if err != nil || d == nil {
		return time.Time{}, utils.NewFieldError("month", "invalid month %q", s)
	}
	return utils.FirstOfMonth(*d), nil
}

// UpsertInterviewAnalysis sets the allotment of (user, month). The bool reports a new row.
func UpsertInterviewAnalysis(ctx context.Context, input *InterviewAnalysisInput) (*InterviewAnalysis, bool, error) {
	if input.TotalInterviewsAllotted == nil {
		return nil, false, utils.NewFieldError("totalInterviewsAllotted", "totalInterviewsAllotted is required")
	}
	if *input.TotalInterviewsAllotted < 0 {
		return nil, false, utils.NewFieldError("totalInterviewsAllotted", "must not be negative")
	}
	month, err := monthStart(input.Month)
	if err != nil {
		return nil, false, err
	}
	if err := utils.ValidateReference[User](ctx, input.UserId, "User not registered"); err != nil {
		return nil, false, err
	}

	db := config.GetDB()
	var existing int64
	if err := db.WithContext(ctx).Model(&InterviewAnalysis{}).
		Where("user_id = ? AND month = ?", input.UserId, month).
		Count(&existing).Error; err != nil {
		return nil, false, err
	}

	row := InterviewAnalysis{UserId: input.UserId, TotalInterviewsAllotted: *input.TotalInterviewsAllotted, Month: month, IsActive: true}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_interviews_allotted", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return nil, false, err
	}

	var stored InterviewAnalysis
	if err := db.WithContext(ctx).Where("user_id = ? AND month = ?", input.UserId, month).Take(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, existing == 0, nil
}

func ListInterviewAnalyses(ctx context.Context) ([]*InterviewAnalysis, error) {
	db := config.GetDB()
	var results []*InterviewAnalysis
	if err := db.WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetInterviewAnalysisOfUser returns the newest allotment of the user.
func GetInterviewAnalysisOfUser(ctx context.Context, userId int) (*InterviewAnalysis, error) {
	db := config.GetDB()
	var result InterviewAnalysis
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("month DESC").
		Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
