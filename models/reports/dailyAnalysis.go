package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
)

// DailyRow is one day of the call and JD analysis. The totals row leaves Date and Day empty.
type DailyRow struct {
	Date                 string           `json:"date,omitempty"`
	Day                  string           `json:"day,omitempty"`
	PlannedCalls         int              `json:"plannedCalls"`
	PlannedJds           int              `json:"plannedJds"`
	Connected            int              `json:"connected"`
	NotAnswered          int              `json:"notAnswered"`
	Busy                 int              `json:"busy"`
	SwitchOff            int              `json:"switchOff"`
	Invalid              int              `json:"invalid"`
	AchievedCalls        int              `json:"achievedCalls"`
	AchievementPercent   analysis.Percent `json:"achievementPercent"`
	JdSent               int              `json:"jdSent"`
	JdAchievementPercent analysis.Percent `json:"jdAchievementPercent"`
}

type DailyAnalysis struct {
	UserID   int        `json:"userId"`
	Month    string     `json:"month"`
	FromDate string     `json:"fromDate"`
	ToDate   string     `json:"toDate"`
	Dates    []DailyRow `json:"dates"`
	Totals   DailyRow   `json:"totals"`
}

var dailyDimensions = []analysis.DimensionKey{analysis.DimCalls, analysis.DimJds}

func dailyRow(r analysis.Row) DailyRow {
	calls, jds := r.Tally(analysis.DimCalls), r.Tally(analysis.DimJds)
	return DailyRow{
		Date:                 r.Key,
		Day:                  r.Label,
		PlannedCalls:         calls.Planned,
		PlannedJds:           jds.Planned,
		Connected:            calls.Categories["connected"],
		NotAnswered:          calls.Categories["notAnswered"],
		Busy:                 calls.Categories["busy"],
		SwitchOff:            calls.Categories["switchOff"],
		Invalid:              calls.Categories["invalid"],
		AchievedCalls:        calls.Achieved,
		AchievementPercent:   calls.Percent,
		JdSent:               jds.Achieved,
		JdAchievementPercent: jds.Percent,
	}
}

// GetDailyAnalysis reconciles planned calls and JDs against the user's call sheet,
// one row per day. The range defaults to today.
func GetDailyAnalysis(ctx context.Context, userID int, req analysis.RangeRequest) (out *DailyAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetDailyAnalysis", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "daily_analysis", start, map[string]any{"user_id": userID})

	r, err := analysis.ResolveRange(req, analysis.DefaultToday, config.Now())
	if err != nil {
		return nil, err
	}
	from, to := formatRange(r)

	return cached(ctx, reportKey("daily", userID, from, to), func() (*DailyAnalysis, bool, error) {
		result := &DailyAnalysis{UserID: userID, Month: analysis.MonthLabel(r), FromDate: from, ToDate: to, Dates: []DailyRow{}}
		known, err := userExists(ctx, userID)
		if err != nil || !known {
			return result, false, err
		}
		buckets, err := analysis.BuildBuckets(r, analysis.GranularityDay)
		if err != nil {
			return nil, false, err
		}
		rec, err := newEngine().Reconcile(ctx, userID, buckets, dailyDimensions)
		if err != nil {
			return nil, false, err
		}
		for _, row := range rec.Rows {
			result.Dates = append(result.Dates, dailyRow(row))
		}
		result.Totals = dailyRow(rec.Totals)
		return result, true, nil
	})
}
