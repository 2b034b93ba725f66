package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/middlewares"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

var ErrNoInterviewAnalysis = fmt.Errorf("No analysis found for this user: %w", utils.ErrorRecordNotFound)

// InterviewerAnalysis compares the interviews allotted to a user with the ones conducted.
type InterviewerAnalysis struct {
	Sr                       int            `json:"sr"`
	UserID                   int            `json:"userId"`
	Month                    string         `json:"month"`
	InterviewerName          *string        `json:"interviewerName"`
	TotalInterviewsAllotted  int            `json:"totalInterviewsAllotted"`
	TotalInterviewsConducted int            `json:"totalInterviewsConducted"`
	SelectionStatus          map[string]int `json:"selectionStatus"`
	DatesOfInterviews        []string       `json:"datesOfInterviews"`
}

func buildInterviewerAnalysis(a *models.InterviewAnalysis, conducted []*models.InterviewDetail, names map[int]string) (InterviewerAnalysis, error) {
	dim, err := analysis.LookupDimension(analysis.DimInterviews)
	if err != nil {
		return InterviewerAnalysis{}, err
	}
	out := InterviewerAnalysis{
		Sr:                       a.ID,
		UserID:                   a.UserId,
		Month:                    a.Month.Format(analysis.MonthLayout),
		TotalInterviewsAllotted:  a.TotalInterviewsAllotted,
		TotalInterviewsConducted: len(conducted),
		SelectionStatus:          make(map[string]int, len(dim.Categories)),
		DatesOfInterviews:        make([]string, 0, len(conducted)),
	}
	if name, ok := names[a.UserId]; ok {
		out.InterviewerName = &name
	}
	for _, c := range dim.Categories {
		out.SelectionStatus[c.Key] = 0
	}
	loc := config.Location()
	for _, d := range conducted {
		if key, ok := analysis.ClassifyOutcome(dim, utils.DereferencePtr(d.FinalStatus)); ok {
			out.SelectionStatus[key]++
		}
		out.DatesOfInterviews = append(out.DatesOfInterviews, analysis.DayKey(d.InterviewDate, loc))
	}
	return out, nil
}

func groupByInterviewer(details []*models.InterviewDetail) map[int][]*models.InterviewDetail {
	out := make(map[int][]*models.InterviewDetail)
	for _, d := range details {
		out[d.InterviewedBy] = append(out[d.InterviewedBy], d)
	}
	return out
}

// GetInterviewAnalysis returns every allotment with the interviews its user conducted.
// Interviews are read in one query for all interviewers.
func GetInterviewAnalysis(ctx context.Context) (out []InterviewerAnalysis, err error) {
	ctx, span := startSpan(ctx, "GetInterviewAnalysis", 0)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "interview_analysis", start, nil)

	allotments, err := models.ListInterviewAnalyses(ctx)
	if err != nil {
		return nil, &analysis.StoreError{Op: "list interview analyses", Err: err}
	}
	ids := make([]int, 0, len(allotments))
	for _, a := range allotments {
		ids = append(ids, a.UserId)
	}
	ids = utils.UniqueSlice(ids)

	details, err := models.ListInterviewsConductedBy(ctx, ids)
	if err != nil {
		return nil, &analysis.StoreError{Op: "list interviews", Err: err}
	}
	names, err := middlewares.UserNames(ctx, ids)
	if err != nil {
		return nil, &analysis.StoreError{Op: "load users", Err: err}
	}

	byUser := groupByInterviewer(details)
	out = make([]InterviewerAnalysis, 0, len(allotments))
	for _, a := range allotments {
		row, err := buildInterviewerAnalysis(a, byUser[a.UserId], names)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// GetInterviewAnalysisByUser uses the user's newest allotment.
func GetInterviewAnalysisByUser(ctx context.Context, userID int) (out *InterviewerAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetInterviewAnalysisByUser", userID)
	defer func() { finish(span, err) }()

	allotment, err := models.GetInterviewAnalysisOfUser(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrNoInterviewAnalysis
		}
		return nil, &analysis.StoreError{Op: "get interview analysis", Err: err}
	}
	details, err := models.ListInterviewsConductedBy(ctx, []int{userID})
	if err != nil {
		return nil, &analysis.StoreError{Op: "list interviews", Err: err}
	}
	names, err := middlewares.UserNames(ctx, []int{userID})
	if err != nil {
		return nil, &analysis.StoreError{Op: "load users", Err: err}
	}
	row, err := buildInterviewerAnalysis(allotment, details, names)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
