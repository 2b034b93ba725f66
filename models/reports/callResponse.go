package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
)

type CallBucket struct {
	Count   int               `json:"count"`
	Records []*models.CoSheet `json:"records"`
}

type UserSummary struct {
	ID          int     `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Email       string  `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

type CallResponseCounts struct {
	UserID   int                    `json:"userId"`
	FromDate string                 `json:"fromDate"`
	ToDate   string                 `json:"toDate"`
	Counts   map[string]*CallBucket `json:"counts"`
	Users    []UserSummary          `json:"users"`
}

// GetCallResponseCounts lists the user's calls in the range per call response.
// A single date is used for both ends; with neither the range is today.
func GetCallResponseCounts(ctx context.Context, userID int, fromDate, toDate string) (out *CallResponseCounts, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetCallResponseCounts", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "call_response_counts", start, map[string]any{"user_id": userID})

	r, err := analysis.ResolveRange(analysis.RangeRequest{FromDate: fromDate, ToDate: toDate}, analysis.DefaultToday, config.Now())
	if err != nil {
		return nil, err
	}
	from, to := formatRange(r)
	out = &CallResponseCounts{UserID: userID, FromDate: from, ToDate: to, Counts: make(map[string]*CallBucket, len(analysis.CallCategories))}
	for _, c := range analysis.CallCategories {
		out.Counts[c.Key] = &CallBucket{Records: []*models.CoSheet{}}
	}

	lo, hi := analysis.DayBounds(r.Start, r.End, config.Location())
	db := config.GetDB()
	var rows []*models.CoSheet
	if err := db.WithContext(ctx).
		Where("user_id = ? AND date_of_connect >= ? AND date_of_connect < ?", userID, lo.UTC(), hi.UTC()).
		Order("date_of_connect").Order("id").
		Find(&rows).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query calls", Err: err}
	}

	calls, err := analysis.LookupDimension(analysis.DimCalls)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.CallResponse == nil {
			continue
		}
		key, ok := analysis.ClassifyOutcome(calls, *row.CallResponse)
		if !ok {
			continue
		}
		b := out.Counts[key]
		b.Count++
		b.Records = append(b.Records, row)
	}

	users, err := models.GetAllUsers(ctx)
	if err != nil {
		return nil, &analysis.StoreError{Op: "list users", Err: err}
	}
	out.Users = make([]UserSummary, 0, len(users))
	for _, u := range users {
		out.Users = append(out.Users, UserSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, PhoneNumber: u.PhoneNumber})
	}
	return out, nil
}
