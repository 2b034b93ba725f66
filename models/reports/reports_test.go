package reports_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/models/reports"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func at(t *testing.T, day string, hour int) *time.Time {
	t.Helper()
	v := testutil.Day(t, day).Add(time.Duration(hour) * time.Hour)
	return &v
}

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}

func march() analysis.RangeRequest {
	return analysis.RangeRequest{Month: "2025-03"}
}

func TestGetDailyAnalysis_Month(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	mustCreate(t, db, &models.MyTarget{UserId: userID, TargetDate: testutil.Day(t, "2025-03-05"), Calls: 10, Jds: 4})
	mustCreate(t, db, &[]models.CoSheet{
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 9), CallResponse: testutil.Ptr("Connected"), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 10), CallResponse: testutil.Ptr("connected"), JdSentAt: at(t, "2025-03-05", 11), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 12), CallResponse: testutil.Ptr("Busy"), IsActive: true},
	})

	got, err := reports.GetDailyAnalysis(context.Background(), userID, march())
	if err != nil {
		t.Fatalf("GetDailyAnalysis: %v", err)
	}
	if got.Month != "March 2025" || got.FromDate != "2025-03-01" || got.ToDate != "2025-03-31" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if len(got.Dates) != 31 {
		t.Fatalf("expected 31 days, got %d", len(got.Dates))
	}
	if first := got.Dates[0]; first.PlannedCalls != 0 || first.AchievementPercent.String() != "0.00" || first.Day != "Saturday" {
		t.Fatalf("empty day should be zeroed: %+v", first)
	}
	day := got.Dates[4]
	if day.Date != "2025-03-05" || day.PlannedCalls != 10 || day.Connected != 2 || day.Busy != 1 || day.AchievedCalls != 3 {
		t.Fatalf("unexpected 5 March row: %+v", day)
	}
	if day.AchievementPercent.String() != "30.00" {
		t.Fatalf("expected 30.00, got %s", day.AchievementPercent)
	}
	if day.JdSent != 1 || day.JdAchievementPercent.String() != "25.00" {
		t.Fatalf("unexpected jd numbers: %+v", day)
	}
	if got.Totals.AchievedCalls != 3 || got.Totals.PlannedCalls != 10 || got.Totals.Date != "" {
		t.Fatalf("unexpected totals: %+v", got.Totals)
	}
}

func TestGetDailyAnalysis_UnknownAndMissingUser(t *testing.T) {
	testutil.SetupDB(t, time.UTC)
	ctx := context.Background()

	got, err := reports.GetDailyAnalysis(ctx, 4242, march())
	if err != nil {
		t.Fatalf("unknown user should not fail: %v", err)
	}
	if len(got.Dates) != 0 || got.Month != "March 2025" {
		t.Fatalf("expected an empty report, got %+v", got)
	}

	if _, err := reports.GetDailyAnalysis(ctx, 0, march()); !utils.IsValidationError(err) {
		t.Fatalf("expected 'userId is required', got %v", err)
	}
	var ire *analysis.InvalidRangeError
	if _, err := reports.GetDailyAnalysis(ctx, 1, analysis.RangeRequest{FromDate: "2025-03-10", ToDate: "2025-03-01"}); !errors.As(err, &ire) {
		t.Fatalf("expected an invalid range error, got %v", err)
	}
}

func TestGetTargetAnalysis_MonthGranularity(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	mustCreate(t, db, &models.MyTarget{UserId: userID, TargetDate: testutil.Day(t, "2025-03-05"), Calls: 4})
	mustCreate(t, db, &models.CoSheet{UserId: &userID, DateOfConnect: at(t, "2025-03-20", 9), CallResponse: testutil.Ptr("invalid"), IsActive: true})

	got, err := reports.GetTargetAnalysis(context.Background(), userID, march(), []analysis.DimensionKey{analysis.DimCalls}, analysis.GranularityMonth)
	if err != nil {
		t.Fatalf("GetTargetAnalysis: %v", err)
	}
	if len(got.Dates) != 1 || got.Dates[0].Key != "2025-03" {
		t.Fatalf("expected a single month bucket, got %+v", got.Dates)
	}
	calls := got.Dates[0].Tally(analysis.DimCalls)
	if calls.Planned != 4 || calls.Achieved != 1 || calls.Categories["invalid"] != 1 || calls.Percent.String() != "25.00" {
		t.Fatalf("unexpected calls tally: %+v", calls)
	}
}

func TestResumeAnalysis_PerCoSheetAndFollowUp(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	mustCreate(t, db, &models.MyTarget{UserId: userID, TargetDate: testutil.Day(t, "2025-03-03"), ResumeTarget: 4, FollowUps: 2})
	a := models.CoSheet{UserId: &userID, ResumeDate: at(t, "2025-03-03", 10), ResumeCount: testutil.Ptr(2), FollowUpResponse: testutil.Ptr("Delayed"), FollowUpBy: testutil.Ptr("Asha"), IsActive: true}
	b := models.CoSheet{UserId: &userID, ResumeDate: at(t, "2025-03-10", 10), FollowUpResponse: testutil.Ptr("no response"), FollowUpBy: testutil.Ptr("Ravi"), IsActive: true}
	mustCreate(t, db, &a)
	mustCreate(t, db, &b)
	ctx := context.Background()

	per, err := reports.GetResumeAnalysisPerCoSheet(ctx, userID, march(), "day")
	if err != nil {
		t.Fatalf("GetResumeAnalysisPerCoSheet: %v", err)
	}
	if len(per) != 2 || per[0].CoSheetID != a.ID || per[1].CoSheetID != b.ID {
		t.Fatalf("expected one entry per cosheet in id order, got %+v", per)
	}
	if len(per[0].Breakdown) != 1 || per[0].TotalResumes != 2 || per[0].TotalTarget != 4 || per[0].Efficiency.String() != "50.00" {
		t.Fatalf("unexpected first cosheet: %+v", per[0])
	}
	if per[0].Breakdown[0].Delayed != 2 || len(per[0].FollowUpUsers) != 1 || per[0].FollowUpUsers[0] != "Asha" {
		t.Fatalf("unexpected first breakdown: %+v", per[0])
	}
	if per[1].TotalTarget != 0 || per[1].Efficiency.String() != "0.00" || per[1].Breakdown[0].NoResponse != 1 {
		t.Fatalf("unexpected second cosheet: %+v", per[1])
	}

	byOwner, err := reports.GetResumeAnalysisPerFollowUp(ctx, userID, march(), "")
	if err != nil {
		t.Fatalf("GetResumeAnalysisPerFollowUp: %v", err)
	}
	if len(byOwner) != 2 || byOwner[0].FollowUpBy != "Asha" || byOwner[1].FollowUpBy != "Ravi" {
		t.Fatalf("unexpected owners: %+v", byOwner)
	}
	if len(byOwner[0].Breakdown) != 31 || byOwner[0].TotalResumes != 2 {
		t.Fatalf("owner should span the whole month: %d rows, %d resumes", len(byOwner[0].Breakdown), byOwner[0].TotalResumes)
	}

	summary, err := reports.GetResumeFollowUpAnalysis(ctx, userID, march(), "month")
	if err != nil {
		t.Fatalf("GetResumeFollowUpAnalysis: %v", err)
	}
	if len(summary.Breakdown) != 1 || summary.Totals.TotalAchievedResumes != 3 || summary.Totals.TotalFollowUpTarget != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Totals.ResumeEfficiency.String() != "75.00" || summary.Totals.FollowUpEfficiency.String() != "150.00" {
		t.Fatalf("unexpected efficiencies: %+v", summary.Totals)
	}

	var ire *analysis.InvalidRangeError
	if _, err := reports.GetResumeFollowUpAnalysis(ctx, userID, march(), "week"); !errors.As(err, &ire) {
		t.Fatalf("expected an unknown period error, got %v", err)
	}
}

func TestGetCallResponseCounts(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	mustCreate(t, db, &[]models.CoSheet{
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 9), CallResponse: testutil.Ptr("Connected"), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 10), CallResponse: testutil.Ptr(" switch off "), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-06", 10), CallResponse: testutil.Ptr("connected"), IsActive: true},
	})

	got, err := reports.GetCallResponseCounts(context.Background(), userID, "2025-03-05", "")
	if err != nil {
		t.Fatalf("GetCallResponseCounts: %v", err)
	}
	if got.FromDate != "2025-03-05" || got.ToDate != "2025-03-05" {
		t.Fatalf("a single date should fill both ends: %s..%s", got.FromDate, got.ToDate)
	}
	if got.Counts["connected"].Count != 1 || got.Counts["switchOff"].Count != 1 || got.Counts["busy"].Count != 0 {
		t.Fatalf("unexpected counts: connected=%d switchOff=%d", got.Counts["connected"].Count, got.Counts["switchOff"].Count)
	}
	if len(got.Users) != 1 || got.Users[0].Email != "asha@example.com" {
		t.Fatalf("unexpected users: %+v", got.Users)
	}
}

func TestInterviewAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	other := testutil.SeedUser(t, db, "Ravi", "Kumar", "ravi@example.com")
	mustCreate(t, db, &models.InterviewAnalysis{UserId: userID, TotalInterviewsAllotted: 5, Month: testutil.Day(t, "2025-03-01"), IsActive: true})
	mustCreate(t, db, &[]models.InterviewDetail{
		{InterviewedBy: userID, InterviewDate: *at(t, "2025-03-04", 10), FinalStatus: testutil.Ptr("selected"), IsActive: true},
		{InterviewedBy: userID, InterviewDate: *at(t, "2025-03-06", 10), IsActive: true},
		{InterviewedBy: other, InterviewDate: *at(t, "2025-03-06", 10), FinalStatus: testutil.Ptr("rejected"), IsActive: true},
	})
	ctx := context.Background()

	all, err := reports.GetInterviewAnalysis(ctx)
	if err != nil {
		t.Fatalf("GetInterviewAnalysis: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one allotment, got %d", len(all))
	}
	row := all[0]
	if row.InterviewerName == nil || *row.InterviewerName != "Asha Rao" || row.Month != "2025-03" {
		t.Fatalf("unexpected row header: %+v", row)
	}
	if row.TotalInterviewsConducted != 2 || row.SelectionStatus["selected"] != 1 || row.SelectionStatus["not-answered"] != 1 || row.SelectionStatus["rejected"] != 0 {
		t.Fatalf("unexpected selection status: %+v", row)
	}
	if len(row.DatesOfInterviews) != 2 || row.DatesOfInterviews[0] != "2025-03-04" {
		t.Fatalf("unexpected dates: %v", row.DatesOfInterviews)
	}

	if _, err := reports.GetInterviewAnalysisByUser(ctx, other); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found for a user without allotment, got %v", err)
	}
}

func seedResumes(t *testing.T, db *gorm.DB, userID int) {
	t.Helper()
	mustCreate(t, db, &[]models.StudentResume{
		{UserId: &userID, CollegeName: testutil.Ptr("XLRI"), ResumeDate: at(t, "2025-03-02", 10), FollowupBy: testutil.Ptr("Ravi"), IsActive: true},
		{UserId: &userID, CollegeName: testutil.Ptr("IIM Indore"), ResumeDate: at(t, "2025-03-02", 9), FollowupBy: testutil.Ptr("Asha"), InterviewDate: at(t, "2025-03-05", 11), IsActive: true},
		{UserId: &userID, CollegeName: testutil.Ptr("IIM Indore"), ResumeDate: at(t, "2025-03-02", 12), FollowupBy: testutil.Ptr("Asha"), IsActive: true},
		{UserId: &userID, CollegeName: testutil.Ptr("IIM Indore"), ResumeDate: at(t, "2025-03-03", 12), FollowupBy: testutil.Ptr("Asha"), IsActive: true},
	})
}

func TestGetCollegeAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	seedResumes(t, db, userID)

	got, err := reports.GetCollegeAnalysis(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetCollegeAnalysis: %v", err)
	}
	if len(got) != 2 || got[0].CollegeName != "IIM Indore" || got[1].CollegeName != "XLRI" {
		t.Fatalf("expected colleges ordered by name, got %+v", got)
	}
	iim := got[0]
	if iim.NumberOfStudentResumes != 3 || len(iim.DateOfResumesReceived) != 2 || iim.DateOfResumesReceived[0] != "1. 02/03/2025" {
		t.Fatalf("unexpected resume dates: %+v", iim)
	}
	if len(iim.DateOfInterviewsScheduled) != 1 || iim.DateOfInterviewsScheduled[0] != "1. 05/03/2025" {
		t.Fatalf("unexpected interview dates: %+v", iim.DateOfInterviewsScheduled)
	}
}

func TestGetDailyCalendarAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	seedResumes(t, db, userID)

	got, err := reports.GetDailyCalendarAnalysis(context.Background(), userID, march())
	if err != nil {
		t.Fatalf("GetDailyCalendarAnalysis: %v", err)
	}
	if len(got) != 3 || got[0].Date != "2025-03-02" || got[2].Date != "2025-03-05" {
		t.Fatalf("expected three active days, got %+v", got)
	}
	first := got[0]
	if first.Day != "Sunday" || first.ResumesReceived != 3 || first.InterviewsScheduled != 0 {
		t.Fatalf("unexpected first day: %+v", first)
	}
	if len(first.ResumesColleges) != 2 || first.ResumesColleges[0] != "1. IIM Indore (2)" || first.ResumesColleges[1] != "2. XLRI (1)" {
		t.Fatalf("unexpected colleges: %v", first.ResumesColleges)
	}
	if got[2].InterviewsScheduled != 1 || got[2].InterviewsColleges[0] != "1. IIM Indore (1)" {
		t.Fatalf("unexpected interview day: %+v", got[2])
	}
}

func TestGetUserWorkAndRAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	seedResumes(t, db, userID)
	mustCreate(t, db, &models.StudentResume{UserId: &userID, CollegeName: testutil.Ptr("XLRI"), ResumeDate: at(t, "2025-04-01", 9), IsActive: true})
	ctx := context.Background()

	work, err := reports.GetUserWorkAnalysis(ctx, "2025-03-01", "2025-03-31")
	if err != nil {
		t.Fatalf("GetUserWorkAnalysis: %v", err)
	}
	if len(work) != 2 || work[0].FollowupBy != "Ravi" || work[1].FollowupBy != "Asha" {
		t.Fatalf("expected owners in first-seen order, got %+v", work)
	}
	asha := work[1]
	if asha.TotalResumes != 3 || asha.CountOfColleges != 1 || asha.CollegeName[0] != "1. IIM Indore (3)" {
		t.Fatalf("unexpected work row: %+v", asha)
	}
	if len(asha.DateOfOnboarding) != 2 || asha.DateOfOnboarding[0] != "2025-03-02 (1)" {
		t.Fatalf("unexpected onboarding dates: %v", asha.DateOfOnboarding)
	}

	all, err := reports.GetUserWorkAnalysis(ctx, "2025-03-01", "")
	if err != nil {
		t.Fatalf("GetUserWorkAnalysis without range: %v", err)
	}
	if len(all) != 3 || all[2].FollowupBy != "Unknown" {
		t.Fatalf("a half-open range should include every resume, got %+v", all)
	}

	r, err := reports.GetRAnalysis(ctx, "", "")
	if err != nil {
		t.Fatalf("GetRAnalysis: %v", err)
	}
	if r.TotalResumesReceived != 5 || r.TotalInterviewsScheduled != 1 || r.TotalCollegesResponses != 2 || r.AverageResponsePerCollege != 2.5 {
		t.Fatalf("unexpected overview: %+v", r)
	}
	if len(r.TopPerformers) != 3 || r.TopPerformers[0] != "1. Asha (3)" {
		t.Fatalf("unexpected top performers: %v", r.TopPerformers)
	}
	if len(r.LowPerformers) != 0 {
		t.Fatalf("every owner is already a top performer, got %v", r.LowPerformers)
	}
}

func TestGetUserTargetAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	seedResumes(t, db, userID)
	mustCreate(t, db, &models.MyTarget{UserId: userID, TargetDate: testutil.Day(t, "2025-03-02"), CollegeTarget: 3, InterviewsTarget: 2, ResumeTarget: 5})

	got, err := reports.GetUserTargetAnalysis(context.Background(), userID, analysis.RangeRequest{FromDate: "2025-03-02", ToDate: "2025-03-02"})
	if err != nil {
		t.Fatalf("GetUserTargetAnalysis: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two follow-up owners, got %+v", got)
	}
	asha := got[1]
	if asha.FollowupBy != "Asha" || asha.ResumesAchieved != 2 || asha.InterviewsAchieved != 1 || asha.CollegesAchieved != 1 {
		t.Fatalf("unexpected achievement: %+v", asha)
	}
	if asha.CollegeTarget != 3 || asha.InterviewsTarget != 2 || asha.ResumesReceivedTarget != 5 {
		t.Fatalf("unexpected targets: %+v", asha)
	}
}

func TestGetInternshipStats(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	mustCreate(t, db, &[]models.CoSheet{
		{UserId: &userID, DateOfConnect: at(t, "2025-03-05", 9), InternshipType: testutil.Ptr("SIP"), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-06", 9), InternshipType: testutil.Ptr(" sip "), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-07", 9), InternshipType: testutil.Ptr("summer"), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-03-08", 9), IsActive: true},
		{UserId: &userID, DateOfConnect: at(t, "2025-04-01", 9), InternshipType: testutil.Ptr("wip"), IsActive: true},
	})

	got, err := reports.GetInternshipStats(context.Background(), userID, march())
	if err != nil {
		t.Fatalf("GetInternshipStats: %v", err)
	}
	counts := map[string]int{}
	for _, c := range got.Types {
		counts[c.InternshipType] = c.Count
	}
	if counts["sip"] != 2 || counts["unspecified"] != 2 || counts["wip"] != 0 || got.Total != 4 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if len(got.Types) != len(models.InternshipTypes)+1 {
		t.Fatalf("every internship type should be listed, got %d", len(got.Types))
	}
}

func TestExportDailyAnalysisExcel(t *testing.T) {
	resp := &reports.DailyAnalysis{
		Dates: []reports.DailyRow{
			{Date: "2025-03-01", Day: "Saturday", PlannedCalls: 10, AchievedCalls: 3, AchievementPercent: analysis.AchievementPercent(3, 10)},
		},
		Totals: reports.DailyRow{PlannedCalls: 10, AchievedCalls: 3, AchievementPercent: analysis.AchievementPercent(3, 10)},
	}
	var buf bytes.Buffer
	if err := reports.ExportDailyAnalysisExcel(&buf, resp); err != nil {
		t.Fatalf("ExportDailyAnalysisExcel: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	cases := map[string]string{"A1": "Date", "A2": "2025-03-01", "J2": "30.00", "A3": "Total", "C3": "10"}
	for cell, want := range cases {
		got, err := f.GetCellValue("Sheet1", cell)
		if err != nil {
			t.Fatalf("read %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s = %q, want %q", cell, got, want)
		}
	}
}
