package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MyTarget holds the planned numbers of one user for one calendar day.
type MyTarget struct {
	ID               int       `gorm:"primary_key" json:"id"`
	UserId           int       `gorm:"not null;uniqueIndex:uniq_target_user_date,priority:1" json:"userId"`
	CoSheetId        *int      `json:"coSheetId"`
	TargetDate       time.Time `gorm:"type:date;not null;uniqueIndex:uniq_target_user_date,priority:2" json:"targetDate"`
	Jds              int       `gorm:"not null;default:0" json:"jds"`
	Calls            int       `gorm:"not null;default:0" json:"calls"`
	FollowUps        int       `gorm:"not null;default:0" json:"followUps"`
	ResumeTarget     int       `gorm:"not null;default:0" json:"resumetarget"`
	CollegeTarget    int       `gorm:"not null;default:0" json:"collegeTarget"`
	InterviewsTarget int       `gorm:"not null;default:0" json:"interviewsTarget"`
	User             *User     `gorm:"foreignKey:UserId" json:"-"`
	UserName         string    `gorm:"-" json:"userName,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TargetFields are the planned numbers of a target write; nil fields are left untouched.
type TargetFields struct {
	Jds              *int `json:"jds"`
	Calls            *int `json:"calls"`
	FollowUps        *int `json:"followUps"`
	ResumeTarget     *int `json:"resumetarget"`
	CollegeTarget    *int `json:"collegeTarget"`
	InterviewsTarget *int `json:"interviewsTarget"`
}

// NewTargetRange sets the same targets on every day of [startDate, endDate].
// Without dates the current month is used.
type NewTargetRange struct {
	UserId    int    `json:"userId" binding:"required"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	TargetFields
}

type NewTarget struct {
	UserId     int    `json:"userId" binding:"required"`
	TargetDate string `json:"targetDate"`
	TargetFields
}

func (f TargetFields) columns() (map[string]int, error) {
	cols := map[string]int{}
	set := func(name string, column string, v *int) error {
		if v == nil {
			return nil
		}
		if *v < 0 {
			return utils.NewFieldError(name, "must not be negative")
		}
		cols[column] = *v
		return nil
	}
	for _, c := range []struct {
		name, column string
		value        *int
	}{
		{"jds", "jds", f.Jds},
		{"calls", "calls", f.Calls},
		{"followUps", "follow_ups", f.FollowUps},
		{"resumetarget", "resume_target", f.ResumeTarget},
		{"collegeTarget", "college_target", f.CollegeTarget},
		{"interviewsTarget", "interviews_target", f.InterviewsTarget},
	} {
		if err := set(c.name, c.column, c.value); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func (f TargetFields) apply(t *MyTarget) {
	t.Jds = utils.DereferencePtr(f.Jds, t.Jds)
	t.Calls = utils.DereferencePtr(f.Calls, t.Calls)
	t.FollowUps = utils.DereferencePtr(f.FollowUps, t.FollowUps)
	t.ResumeTarget = utils.DereferencePtr(f.ResumeTarget, t.ResumeTarget)
	t.CollegeTarget = utils.DereferencePtr(f.CollegeTarget, t.CollegeTarget)
	t.InterviewsTarget = utils.DereferencePtr(f.InterviewsTarget, t.InterviewsTarget)
}

// upsertTargetDay writes one (user, day) row. Existing rows only get the supplied columns.
// The redis lock serialises concurrent writers of the same day.
func upsertTargetDay(ctx context.Context, tx *gorm.DB, userId int, coSheetId *int, day time.Time, fields TargetFields) (*MyTarget, error) {
	cols, err := fields.columns()
	if err != nil {
		return nil, err
	}
	day = analysis.CivilDate(day)

	release, err := config.ObtainLock(ctx, fmt.Sprintf("MyTarget:%d:%s", userId, day.Format(analysis.DayLayout)), 10*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	row := MyTarget{UserId: userId, CoSheetId: coSheetId, TargetDate: day}
	fields.apply(&row)

	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "target_date"}},
	}
	if len(cols) == 0 {
		onConflict.DoNothing = true
	} else {
		names := make([]string, 0, len(cols)+1)
		for c := range cols {
			names = append(names, c)
		}
		names = append(names, "updated_at")
		onConflict.DoUpdates = clause.AssignmentColumns(names)
	}
	if err := tx.WithContext(ctx).Clauses(onConflict).Create(&row).Error; err != nil {
		return nil, err
	}

	var stored MyTarget
	if err := tx.WithContext(ctx).
		Where("user_id = ? AND target_date = ?", userId, day).
		Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// AddTargets upserts one row per day of the range.
func AddTargets(ctx context.Context, input *NewTargetRange) ([]*MyTarget, error) {
	if err := utils.ValidateReference[User](ctx, input.UserId, "User not registered"); err != nil {
		return nil, err
	}
	r, err := analysis.ResolveRange(analysis.RangeRequest{FromDate: input.StartDate, ToDate: input.EndDate}, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	if r.Days() > 366 {
		return nil, utils.NewValidationError("target range is limited to one year")
	}

	db := config.GetDB()
	coSheetId, err := latestCoSheetId(ctx, db, input.UserId)
	if err != nil {
		return nil, err
	}

	results := make([]*MyTarget, 0, r.Days())
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
			t, err := upsertTargetDay(ctx, tx, input.UserId, coSheetId, d, input.TargetFields)
			if err != nil {
				return err
			}
			results = append(results, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// UpsertTarget writes a single day, today when no date is given.
func UpsertTarget(ctx context.Context, input *NewTarget) (*MyTarget, error) {
	if err := utils.ValidateReference[User](ctx, input.UserId, "User not registered"); err != nil {
		return nil, err
	}
	day := today()
	if input.TargetDate != "" {
		d, err := parseCivilDate("targetDate", &input.TargetDate)
		if err != nil {
			return nil, err
		}
		day = *d
	}

	db := config.GetDB()
	coSheetId, err := latestCoSheetId(ctx, db, input.UserId)
	if err != nil {
		return nil, err
	}
	return upsertTargetDay(ctx, db, input.UserId, coSheetId, day, input.TargetFields)
}

func GetTarget(ctx context.Context, id int) (*MyTarget, error) {
	target, err := utils.FetchSingleModel[MyTarget](ctx, id, "User")
	if err != nil {
		return nil, err
	}
	if target.User != nil {
		target.UserName = target.User.FullName()
	}
	return target, nil
}

// ListTargets returns every target, newest day first. Owner names are filled by the caller.
func ListTargets(ctx context.Context, userId *int) ([]*MyTarget, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if userId != nil {
		dbCtx = dbCtx.Where("user_id = ?", *userId)
	}
	var results []*MyTarget
	if err := dbCtx.Order("target_date DESC").Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func UpdateTarget(ctx context.Context, id int, input *TargetFields) (*MyTarget, error) {
	target, err := utils.FetchSingleModel[MyTarget](ctx, id)
	if err != nil {
		return nil, err
	}
	cols, err := input.columns()
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, utils.NewValidationError("No fields to update")
	}
	updates := make(map[string]interface{}, len(cols))
	for k, v := range cols {
		updates[k] = v
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(target).Updates(updates).Error; err != nil {
		return nil, err
	}
	return GetTarget(ctx, id)
}

func DeleteTarget(ctx context.Context, id int) (*MyTarget, error) {
	target, err := utils.FetchSingleModel[MyTarget](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(target).Error; err != nil {
		return nil, err
	}
	return target, nil
}

// SumTargets adds up the planned numbers of a user over [from, to].
func SumTargets(ctx context.Context, userId int, from, to time.Time) (analysis.TargetRecord, error) {
	var sum struct {
		Calls            int
		Jds              int
		FollowUps        int
		ResumeTarget     int
		CollegeTarget    int
		InterviewsTarget int
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&MyTarget{}).
		Select("COALESCE(SUM(calls),0) AS calls, COALESCE(SUM(jds),0) AS jds, COALESCE(SUM(follow_ups),0) AS follow_ups, "+
			"COALESCE(SUM(resume_target),0) AS resume_target, COALESCE(SUM(college_target),0) AS college_target, "+
			"COALESCE(SUM(interviews_target),0) AS interviews_target").
		Where("user_id = ? AND target_date BETWEEN ? AND ?", userId, analysis.CivilDate(from), analysis.CivilDate(to)).
		Scan(&sum).Error
	if err != nil {
		return analysis.TargetRecord{}, err
	}
	return analysis.TargetRecord{
		UserID:            userId,
		BucketDate:        analysis.CivilDate(from),
		PlannedCalls:      sum.Calls,
		PlannedJds:        sum.Jds,
		PlannedResumes:    sum.ResumeTarget,
		PlannedInterviews: sum.InterviewsTarget,
		PlannedFollowUps:  sum.FollowUps,
		PlannedColleges:   sum.CollegeTarget,
	}, nil
}
