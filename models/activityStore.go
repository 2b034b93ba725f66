package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

// ActivityStore derives activity records from CoSheet and InterviewDetail rows.
// Timestamps are stored in UTC and bucketed by calendar day in Location.
type ActivityStore struct {
	DB       *gorm.DB
	Location *time.Location
}

// TargetStore reads MyTarget rows.
type TargetStore struct {
	DB *gorm.DB
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{DB: config.GetDB(), Location: config.Location()}
}

func NewTargetStore() *TargetStore {
	return &TargetStore{DB: config.GetDB()}
}

var (
	_ analysis.ActivityStore = (*ActivityStore)(nil)
	_ analysis.TargetStore   = (*TargetStore)(nil)
)

func wantKinds(kinds []analysis.ActivityKind) map[analysis.ActivityKind]bool {
	m := make(map[analysis.ActivityKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func (s *ActivityStore) QueryActivities(ctx context.Context, userID int, kinds []analysis.ActivityKind, from, to time.Time) ([]analysis.ActivityRecord, error) {
	want := wantKinds(kinds)
	start, end := analysis.DayBounds(from, to, s.Location)
	start, end = start.UTC(), end.UTC()

	var records []analysis.ActivityRecord
	if want[analysis.KindCall] || want[analysis.KindJdSent] || want[analysis.KindResumeReceived] {
		rows, err := s.coSheetActivity(ctx, userID, want, start, end)
		if err != nil {
			return nil, &analysis.StoreError{Op: "query cosheet activity", Err: err}
		}
		records = append(records, rows...)
	}
	if want[analysis.KindInterviewConducted] {
		rows, err := s.interviewActivity(ctx, userID, start, end)
		if err != nil {
			return nil, &analysis.StoreError{Op: "query interview activity", Err: err}
		}
		records = append(records, rows...)
	}
	return records, nil
}

func inWindow(t *time.Time, start, end time.Time) bool {
	return t != nil && !t.Before(start) && t.Before(end)
}

// coSheetActivity reads the user's rows once, matching any requested date column,
// and emits one record per matching column.
func (s *ActivityStore) coSheetActivity(ctx context.Context, userID int, want map[analysis.ActivityKind]bool, start, end time.Time) ([]analysis.ActivityRecord, error) {
	q := s.DB.WithContext(ctx).Model(&CoSheet{}).Where("user_id = ?", userID)
	cond := s.DB.Where("1 = 0")
	if want[analysis.KindCall] {
		cond = cond.Or("date_of_connect >= ? AND date_of_connect < ?", start, end)
	}
	if want[analysis.KindJdSent] {
		cond = cond.Or("jd_sent_at >= ? AND jd_sent_at < ?", start, end)
	}
	if want[analysis.KindResumeReceived] {
		cond = cond.Or("resume_date >= ? AND resume_date < ?", start, end)
	}
	var rows []CoSheet
	if err := q.Where(cond).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	var records []analysis.ActivityRecord
	for _, c := range rows {
		if want[analysis.KindCall] && inWindow(c.DateOfConnect, start, end) {
			records = append(records, analysis.ActivityRecord{
				UserID: userID, Kind: analysis.KindCall, OccurredAt: *c.DateOfConnect,
				Outcome: utils.DereferencePtr(c.CallResponse), Quantity: 1, SourceID: c.ID, Actor: utils.DereferencePtr(c.ConnectedBy),
			})
		}
		if want[analysis.KindJdSent] && inWindow(c.JdSentAt, start, end) {
			records = append(records, analysis.ActivityRecord{
				UserID: userID, Kind: analysis.KindJdSent, OccurredAt: *c.JdSentAt,
				Quantity: 1, SourceID: c.ID, Actor: utils.DereferencePtr(c.ConnectedBy),
			})
		}
		if want[analysis.KindResumeReceived] && inWindow(c.ResumeDate, start, end) {
			qty := 1
			if c.ResumeCount != nil {
				qty = *c.ResumeCount
			}
			records = append(records, analysis.ActivityRecord{
				UserID: userID, Kind: analysis.KindResumeReceived, OccurredAt: *c.ResumeDate,
				Outcome: utils.DereferencePtr(c.FollowUpResponse), Quantity: qty, SourceID: c.ID, Actor: utils.DereferencePtr(c.FollowUpBy),
			})
		}
	}
	return records, nil
}

func (s *ActivityStore) interviewActivity(ctx context.Context, userID int, start, end time.Time) ([]analysis.ActivityRecord, error) {
	var rows []InterviewDetail
	if err := s.DB.WithContext(ctx).
		Where("interviewed_by = ? AND interview_date >= ? AND interview_date < ?", userID, start, end).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]analysis.ActivityRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, analysis.ActivityRecord{
			UserID: userID, Kind: analysis.KindInterviewConducted, OccurredAt: r.InterviewDate,
			Outcome: utils.DereferencePtr(r.FinalStatus), Quantity: 1, SourceID: r.ID,
		})
	}
	return records, nil
}

func (s *TargetStore) QueryTargets(ctx context.Context, userID int, from, to time.Time) ([]analysis.TargetRecord, error) {
	var rows []MyTarget
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND target_date >= ? AND target_date <= ?", userID, analysis.CivilDate(from), analysis.CivilDate(to)).
		Order("target_date").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]analysis.TargetRecord, 0, len(rows))
	for _, t := range rows {
		records = append(records, analysis.TargetRecord{
			UserID:            t.UserId,
			BucketDate:        analysis.CivilDate(t.TargetDate),
			PlannedCalls:      t.Calls,
			PlannedJds:        t.Jds,
			PlannedResumes:    t.ResumeTarget,
			PlannedInterviews: t.InterviewsTarget,
			PlannedFollowUps:  t.FollowUps,
			PlannedColleges:   t.CollegeTarget,
		})
	}
	return records, nil
}
