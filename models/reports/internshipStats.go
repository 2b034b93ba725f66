package reports

import (
	"context"
	"database/sql"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

const unspecifiedInternship = "unspecified"

type InternshipCount struct {
	InternshipType string `json:"internshipType"`
	Count          int    `json:"count"`
}

type InternshipStats struct {
	UserID   int               `json:"userId"`
	FromDate string            `json:"fromDate"`
	ToDate   string            `json:"toDate"`
	Types    []InternshipCount `json:"types"`
	Total    int               `json:"total"`
}

// GetInternshipStats counts the colleges the user connected with in the range
// by internship type. Unknown or empty types count as unspecified.
func GetInternshipStats(ctx context.Context, userID int, req analysis.RangeRequest) (out *InternshipStats, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetInternshipStats", userID)
	defer func() { finish(span, err) }()

	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	lo, hi := analysis.DayBounds(r.Start, r.End, config.Location())

	var types []sql.NullString
	if err := config.GetDB().WithContext(ctx).Model(&models.CoSheet{}).
		Where("user_id = ? AND date_of_connect >= ? AND date_of_connect < ?", userID, lo.UTC(), hi.UTC()).
		Pluck("internship_type", &types).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query internship types", Err: err}
	}

	counts := make(map[string]int, len(models.InternshipTypes)+1)
	for _, t := range types {
		key := utils.TrimLower(t.String)
		if !utils.OneOf(key, models.InternshipTypes...) {
			key = unspecifiedInternship
		}
		counts[key]++
	}

	from, to := formatRange(r)
	out = &InternshipStats{UserID: userID, FromDate: from, ToDate: to}
	for _, k := range append(append([]string(nil), models.InternshipTypes...), unspecifiedInternship) {
		out.Types = append(out.Types, InternshipCount{InternshipType: k, Count: counts[k]})
		out.Total += counts[k]
	}
	return out, nil
}
