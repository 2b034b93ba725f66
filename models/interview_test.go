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

func scorecard(k, a, s, o int) *models.Scorecard {
	return &models.Scorecard{Knowledge: &k, Approach: &a, Skills: &s, Others: &o}
}

func TestUpsertInterviewDetail(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	ctx := context.Background()

	invalid := []struct {
		name  string
		input models.InterviewDetailInput
	}{
		{"no interviewer", models.InterviewDetailInput{InterviewDate: "2025-03-01", Scorecard: scorecard(1, 1, 1, 1)}},
		{"no date", models.InterviewDetailInput{InterviewedBy: userID, Scorecard: scorecard(1, 1, 1, 1)}},
		{"unknown interviewer", models.InterviewDetailInput{InterviewedBy: userID + 50, InterviewDate: "2025-03-01", Scorecard: scorecard(1, 1, 1, 1)}},
		{"no scorecard", models.InterviewDetailInput{InterviewedBy: userID, InterviewDate: "2025-03-01"}},
		{"missing score", models.InterviewDetailInput{InterviewedBy: userID, InterviewDate: "2025-03-01", Scorecard: &models.Scorecard{Knowledge: testutil.Ptr(3)}}},
		{"score out of range", models.InterviewDetailInput{InterviewedBy: userID, InterviewDate: "2025-03-01", Scorecard: scorecard(11, 1, 1, 1)}},
		{"bad status", models.InterviewDetailInput{InterviewedBy: userID, InterviewDate: "2025-03-01", Scorecard: scorecard(1, 1, 1, 1), FinalStatus: testutil.Ptr("maybe")}},
	}
	for _, c := range invalid {
		t.Run(c.name, func(t *testing.T) {
			input := c.input
			if _, _, err := models.UpsertInterviewDetail(ctx, &input); !utils.IsValidationError(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	created, isNew, err := models.UpsertInterviewDetail(ctx, &models.InterviewDetailInput{
		InterviewedBy: userID,
		InterviewDate: "2025-03-01",
		Scorecard:     scorecard(7, 8, 6, 8),
		FinalStatus:   testutil.Ptr("Selected"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !isNew || !created.AverageScore.Equal(decimal.RequireFromString("7.25")) || *created.FinalStatus != "selected" {
		t.Fatalf("unexpected created interview: %+v", created)
	}
	if created.InterviewedByName == nil || *created.InterviewedByName != "Asha Rao" {
		t.Fatalf("expected interviewer name, got %v", created.InterviewedByName)
	}

	updated, isNew, err := models.UpsertInterviewDetail(ctx, &models.InterviewDetailInput{
		InterviewID:   &created.ID,
		InterviewedBy: userID,
		InterviewDate: "2025-03-02",
		Scorecard:     scorecard(1, 2, 3, 4),
		FinalStatus:   testutil.Ptr("on-hold"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if isNew || updated.ID != created.ID || !updated.AverageScore.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("unexpected updated interview: %+v", updated)
	}

	missing, err := models.GetInterviewDetail(ctx, created.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for a missing interview, got %v, %v", missing, err)
	}
	all, err := models.ListInterviewDetails(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one interview, got %d (%v)", len(all), err)
	}
}

func TestUpsertInterviewAnalysis(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	userID := testutil.SeedUser(t, db, "Asha", "Rao", "asha@example.com")
	ctx := context.Background()

	if _, _, err := models.UpsertInterviewAnalysis(ctx, &models.InterviewAnalysisInput{UserId: userID + 9, TotalInterviewsAllotted: testutil.Ptr(5), Month: "2025-03"}); !utils.IsValidationError(err) {
		t.Fatalf("expected 'User not registered', got %v", err)
	}

	first, isNew, err := models.UpsertInterviewAnalysis(ctx, &models.InterviewAnalysisInput{UserId: userID, TotalInterviewsAllotted: testutil.Ptr(5), Month: "2025-03"})
	if err != nil || !isNew {
		t.Fatalf("first upsert: %v new=%v", err, isNew)
	}
	second, isNew, err := models.UpsertInterviewAnalysis(ctx, &models.InterviewAnalysisInput{UserId: userID, TotalInterviewsAllotted: testutil.Ptr(8), Month: "2025-03-17"})
	if err != nil || isNew {
		t.Fatalf("second upsert: %v new=%v", err, isNew)
	}
	if second.ID != first.ID || second.TotalInterviewsAllotted != 8 {
		t.Fatalf("expected the same row updated to 8, got %+v", second)
	}
	if got := second.Month.Format("2006-01-02"); got != "2025-03-01" {
		t.Fatalf("month should be normalized to the first day, got %s", got)
	}

	if _, err := models.GetInterviewAnalysisOfUser(ctx, userID+9); err != utils.ErrorRecordNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
