package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var InterviewStatuses = []string{"selected", "rejected", "on-hold"}

// InterviewDetail is one interview conducted by a user, with its score card.
type InterviewDetail struct {
	ID             int             `gorm:"primary_key" json:"interviewID"`
	InterviewedBy  int             `gorm:"not null;index:idx_interview_by_date,priority:1" json:"interviewedBy"`
	InterviewDate  time.Time       `gorm:"not null;index:idx_interview_by_date,priority:2" json:"interviewDate"`
	InterviewTime  *string         `gorm:"size:8" json:"interviewTime"`
	InterviewRound *string         `gorm:"size:50" json:"interviewRound"`
	Knowledge      int             `gorm:"not null" json:"knowledge"`
	Approach       int             `gorm:"not null" json:"approach"`
	Skills         int             `gorm:"not null" json:"skills"`
	Others         int             `gorm:"not null" json:"others"`
	AverageScore   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"averageScore"`
	FinalStatus    *string         `gorm:"size:20" json:"finalStatus"`
	Comments       *string         `gorm:"type:text" json:"comments"`
	IsActive       bool            `gorm:"not null;default:true" json:"isActive"`
	Interviewer    *User           `gorm:"foreignKey:InterviewedBy" json:"-"`
	// InterviewedByName is the interviewer's full name, filled on reads.
	InterviewedByName *string   `gorm:"-" json:"interviewedByName"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type Scorecard struct {
	Knowledge *int `json:"knowledge"`
	Approach  *int `json:"approach"`
	Skills    *int `json:"skills"`
	Others    *int `json:"others"`
}

type InterviewDetailInput struct {
	InterviewID    *int       `json:"interviewID"`
	InterviewedBy  int        `json:"interviewedBy"`
	InterviewDate  string     `json:"interviewDate"`
	InterviewTime  *string    `json:"interviewTime"`
	InterviewRound *string    `json:"interviewRound"`
	Scorecard      *Scorecard `json:"scorecard"`
	FinalStatus    *string    `json:"finalStatus"`
	Comments       *string    `json:"comments"`
}

func (input *InterviewDetailInput) validate(ctx context.Context) error {
	if input.InterviewedBy == 0 {
		return utils.NewFieldError("interviewedBy", "interviewedBy (user ID) is required")
	}
	if strings.TrimSpace(input.InterviewDate) == "" {
		return utils.NewFieldError("interviewDate", "interviewDate is required")
	}
	if err := utils.ValidateReference[User](ctx, input.InterviewedBy, "User ID is not registered"); err != nil {
		return err
	}
	if input.Scorecard == nil {
		return utils.NewFieldError("scorecard", "scorecard is required")
	}
	for _, s := range []struct {
		name  string
		value *int
	}{
		{"knowledge", input.Scorecard.Knowledge},
		{"approach", input.Scorecard.Approach},
		{"skills", input.Scorecard.Skills},
		{"others", input.Scorecard.Others},
	} {
		if s.value == nil {
			return utils.NewFieldError("scorecard", "%s is required in scorecard", s.name)
		}
		if *s.value < 0 || *s.value > 10 {
			return utils.NewFieldError("scorecard", "%s must be an integer between 0 and 10", s.name)
		}
	}
	return nil
}

// UpsertInterviewDetail creates the interview, or replaces it when interviewID names an existing one.
// The returned bool reports whether a row was created.
func UpsertInterviewDetail(ctx context.Context, input *InterviewDetailInput) (*InterviewDetail, bool, error) {
	if err := input.validate(ctx); err != nil {
		return nil, false, err
	}
	date, err := parseTimestamp("interviewDate", &input.InterviewDate)
	if err != nil {
		return nil, false, err
	}
	status, err := closedValue("finalStatus", input.FinalStatus, InterviewStatuses)
	if err != nil {
		return nil, false, err
	}
	interviewTime, err := parseInterviewTime(input.InterviewTime)
	if err != nil {
		return nil, false, err
	}

	sc := input.Scorecard
	record := InterviewDetail{
		InterviewedBy:  input.InterviewedBy,
		InterviewDate:  *date,
		InterviewTime:  interviewTime,
		InterviewRound: trimmedPtr(input.InterviewRound),
		Knowledge:      *sc.Knowledge,
		Approach:       *sc.Approach,
		Skills:         *sc.Skills,
		Others:         *sc.Others,
		AverageScore:   *averageScore(sc.Knowledge, sc.Approach, sc.Skills, sc.Others),
		FinalStatus:    status,
		Comments:       trimmedPtr(input.Comments),
		IsActive:       true,
	}

	db := config.GetDB()
	created := true
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.InterviewID != nil && *input.InterviewID != 0 {
			var existing InterviewDetail
			err := tx.Where("id = ?", *input.InterviewID).Take(&existing).Error
			switch {
			case err == nil:
				created = false
				record.ID = existing.ID
				record.CreatedAt = existing.CreatedAt
				return tx.Save(&record).Error
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			record.ID = *input.InterviewID
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, false, err
	}
	result, err := GetInterviewDetail(ctx, record.ID)
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func withInterviewerName(d *InterviewDetail) *InterviewDetail {
	if d.Interviewer != nil {
		name := d.Interviewer.FullName()
		d.InterviewedByName = &name
	}
	return d
}

// GetInterviewDetail returns nil without error when the interview does not exist.
func GetInterviewDetail(ctx context.Context, id int) (*InterviewDetail, error) {
	db := config.GetDB()
	var results []*InterviewDetail
	if err := db.WithContext(ctx).Preload("Interviewer").Where("id = ?", id).Limit(1).Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return withInterviewerName(results[0]), nil
}

func ListInterviewDetails(ctx context.Context) ([]*InterviewDetail, error) {
	db := config.GetDB()
	var results []*InterviewDetail
	if err := db.WithContext(ctx).Preload("Interviewer").Order("interview_date DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	for _, r := range results {
		withInterviewerName(r)
	}
	return results, nil
}

// ListInterviewsConductedBy returns every interview of the given interviewers, oldest first.
func ListInterviewsConductedBy(ctx context.Context, userIds []int) ([]*InterviewDetail, error) {
	db := config.GetDB()
	var results []*InterviewDetail
	if len(userIds) == 0 {
		return results, nil
	}
	if err := db.WithContext(ctx).
		Where("interviewed_by IN ?", userIds).
		Order("interview_date").Order("id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
