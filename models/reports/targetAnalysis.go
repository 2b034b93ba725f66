package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
)

// TargetAnalysis is the generic reconciliation of any dimension set. Rows marshal
// flat as {date, day, planned<Dim>, achieved<Dim>, <dim>AchievementPercent, <category>...}.
type TargetAnalysis struct {
	UserID      int                     `json:"userId"`
	Month       string                  `json:"month"`
	FromDate    string                  `json:"fromDate"`
	ToDate      string                  `json:"toDate"`
	Granularity analysis.Granularity    `json:"granularity"`
	Dimensions  []analysis.DimensionKey `json:"dimensions"`
	Dates       []analysis.Row          `json:"dates"`
	Totals      analysis.Row            `json:"totals"`
}

// GetTargetAnalysis defaults to the current month at day granularity.
func GetTargetAnalysis(ctx context.Context, userID int, req analysis.RangeRequest, dims []analysis.DimensionKey, g analysis.Granularity) (out *TargetAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		dims = analysis.AllDimensions
	}
	if g == "" {
		g = analysis.GranularityDay
	}
	ctx, span := startSpan(ctx, "GetTargetAnalysis", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "target_analysis", start, map[string]any{"user_id": userID, "dims": dims, "granularity": g})

	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	buckets, err := analysis.BuildBuckets(r, g)
	if err != nil {
		return nil, err
	}

	known, err := userExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	var rec *analysis.Reconciliation
	if known {
		rec, err = newEngine().Reconcile(ctx, userID, buckets, dims)
	} else {
		rec, err = analysis.Merge(nil, dims, nil, nil, config.Location())
	}
	if err != nil {
		return nil, err
	}

	label := analysis.MonthLabel(r)
	rec.Totals.Month = label
	from, to := formatRange(r)
	out = &TargetAnalysis{
		UserID:      userID,
		Month:       label,
		FromDate:    from,
		ToDate:      to,
		Granularity: g,
		Dimensions:  rec.Dimensions,
		Dates:       rec.Rows,
		Totals:      rec.Totals,
	}
	if out.Dates == nil {
		out.Dates = []analysis.Row{}
	}
	return out, nil
}
