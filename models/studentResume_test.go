package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/shopspring/decimal"
)

func newResume(userID int, name, email string) *models.NewStudentResume {
	return &models.NewStudentResume{StudentResumeFields: models.StudentResumeFields{
		UserId:      &userID,
		StudentName: &name,
		EmailId:     &email,
		CollegeName: testutil.Ptr("IIM Indore"),
		ResumeDate:  testutil.Ptr("2025-03-02"),
	}}
}

func TestCreateStudentResumes_RequiresCoSheet(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")

	results, err := models.CreateStudentResumes(context.Background(), []*models.NewStudentResume{newResume(userID, "Neha", "neha@example.com")}, 0)
	if !utils.IsValidationError(err) || err.Error() != "All resume creations failed" {
		t.Fatalf("expected 'All resume creations failed', got %v", err)
	}
	if len(results) != 1 || results[0].Error != "No CoSheet found for this user" {
		t.Fatalf("unexpected row results: %+v", results)
	}
}

func TestCreateStudentResumes_SkipsDuplicates(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	sheet := models.CoSheet{UserId: &userID, CollegeName: testutil.Ptr("IIM Indore"), IsActive: true}
	if err := db.Create(&sheet).Error; err != nil {
		t.Fatalf("seed cosheet: %v", err)
	}
	ctx := context.Background()

	results, err := models.CreateStudentResumes(ctx, []*models.NewStudentResume{
		newResume(userID, "Neha", "neha@example.com"),
		newResume(userID, "Neha", "NEHA@example.com"),
		newResume(userID, "Karan", "not-an-email"),
	}, 0)
	if err != nil {
		t.Fatalf("CreateStudentResumes: %v", err)
	}
	if !results[0].Success || results[0].Data.CoSheetId == nil || *results[0].Data.CoSheetId != sheet.ID {
		t.Fatalf("first row should be linked to cosheet %d: %+v", sheet.ID, results[0])
	}
	if results[1].Success || results[1].Warning != "Duplicate record found. Skipped insert." {
		t.Fatalf("second row should be a duplicate: %+v", results[1])
	}
	if results[2].Success || results[2].Error == "" {
		t.Fatalf("third row should fail on email: %+v", results[2])
	}

	list, err := models.ListStudentResumesByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListStudentResumesByUser: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 stored resume, got %d", len(list))
	}
}

func TestUpdateStudentResume_ClosedSets(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	resume := models.StudentResume{UserId: &userID, StudentName: testutil.Ptr("Neha"), IsActive: true}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	sheet := models.CoSheet{UserId: &userID, IsActive: true}
	if err := db.Create(&sheet).Error; err != nil {
		t.Fatalf("seed cosheet: %v", err)
	}
	ctx := context.Background()

	cases := []struct {
		name    string
		input   models.StudentResumeFields
		wantErr bool
	}{
		{"bad internship", models.StudentResumeFields{InternshipType: testutil.Ptr("summer")}, true},
		{"bad course", models.StudentResumeFields{Course: testutil.Ptr("phd")}, true},
		{"empty", models.StudentResumeFields{}, true},
		{"valid", models.StudentResumeFields{InternshipType: testutil.Ptr("SIP"), Course: testutil.Ptr("MBA+PGDM")}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := models.UpdateStudentResume(ctx, resume.ID, &models.UpdateStudentResumeInput{StudentResumeFields: c.input})
			if c.wantErr {
				if !utils.IsValidationError(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStudentResume: %v", err)
			}
			if *got.InternshipType != "sip" || *got.Course != "mba+pgdm" {
				t.Fatalf("values should be lower-cased: %+v", got)
			}
			if got.CoSheetId == nil || *got.CoSheetId != sheet.ID {
				t.Fatalf("expected relink to cosheet %d, got %v", sheet.ID, got.CoSheetId)
			}
		})
	}
}

func TestUpdateInterviewScore_Average(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	resume := models.StudentResume{UserId: &userID, IsActive: true}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()

	partial, err := models.UpdateInterviewScore(ctx, resume.ID, &models.InterviewScoreInput{KnowledgeScore: testutil.Ptr(8), ApproachScore: testutil.Ptr(7)})
	if err != nil {
		t.Fatalf("partial score: %v", err)
	}
	if partial.TotalAverageScore != nil {
		t.Fatalf("average needs all four scores, got %v", partial.TotalAverageScore)
	}

	full, err := models.UpdateInterviewScore(ctx, resume.ID, &models.InterviewScoreInput{
		SkillsScore:          testutil.Ptr(9),
		OtherScore:           testutil.Ptr(6),
		FinalSelectionStatus: testutil.Ptr("On Hold"),
	})
	if err != nil {
		t.Fatalf("full score: %v", err)
	}
	if full.TotalAverageScore == nil || !full.TotalAverageScore.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("expected average 7.5, got %v", full.TotalAverageScore)
	}
	if *full.FinalSelectionStatus != "on hold" {
		t.Fatalf("expected normalized status, got %q", *full.FinalSelectionStatus)
	}

	if _, err := models.UpdateInterviewScore(ctx, resume.ID, &models.InterviewScoreInput{FinalSelectionStatus: testutil.Ptr("maybe")}); !utils.IsValidationError(err) {
		t.Fatalf("expected status validation error, got %v", err)
	}
	if _, err := models.UpdateInterviewScore(ctx, resume.ID, &models.InterviewScoreInput{SkillsScore: testutil.Ptr(11)}); !utils.IsValidationError(err) {
		t.Fatalf("expected score range error, got %v", err)
	}
}

func TestRequestStudentMail_Enqueues(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	resume := models.StudentResume{UserId: &userID, StudentName: testutil.Ptr("Neha"), EmailId: testutil.Ptr("neha@example.com"), IsActive: true}
	if err := db.Create(&resume).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()

	rec, err := models.RequestStudentMail(ctx, resume.ID)
	if err != nil {
		t.Fatalf("RequestStudentMail: %v", err)
	}
	if rec.Kind != models.MailKindStudent || rec.ReferenceId != resume.ID || rec.PublishStatus != models.OutboxPublishStatusPending {
		t.Fatalf("unexpected outbox row: %+v", rec)
	}

	status, err := models.GetMailStatus(ctx, models.MailReferenceStudentResume, resume.ID)
	if err != nil {
		t.Fatalf("GetMailStatus: %v", err)
	}
	if status.RecordId != rec.ID {
		t.Fatalf("status should point at outbox %d: %+v", rec.ID, status)
	}

	if err := models.MarkStudentMailSent(ctx, db, resume.ID, time.Now()); err != nil {
		t.Fatalf("MarkStudentMailSent: %v", err)
	}
	got, err := models.GetStudentResume(ctx, resume.ID)
	if err != nil {
		t.Fatalf("GetStudentResume: %v", err)
	}
	if got.MailSentAt == nil {
		t.Fatalf("mail_sent_at should be set")
	}
}
