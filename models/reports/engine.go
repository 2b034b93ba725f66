package reports

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func newEngine() *analysis.Engine {
	return analysis.NewEngine(models.NewActivityStore(), models.NewTargetStore(), config.Location())
}

func requireUser(userID int) error {
	if userID <= 0 {
		return utils.NewValidationError("userId is required")
	}
	return nil
}

// userExists backs the tolerant read: an unknown user gets an empty report, not an error.
func userExists(ctx context.Context, userID int) (bool, error) {
	n, err := utils.ResourceCountWhere[models.User](ctx, "id = ?", userID)
	if err != nil {
		return false, &analysis.StoreError{Op: "lookup user", Err: err}
	}
	return n > 0, nil
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func formatRange(r analysis.Range) (string, string) {
	return r.Start.Format(analysis.DayLayout), r.End.Format(analysis.DayLayout)
}

// bucketKey is the DateBucket key t falls into at granularity g.
func bucketKey(t time.Time, g analysis.Granularity, loc *time.Location) string {
	d := analysis.CivilDate(t.In(loc))
	if g == analysis.GranularityMonth {
		return d.Format(analysis.MonthLayout)
	}
	return d.Format(analysis.DayLayout)
}

// loadActivity fetches the targets and the activity of the given kinds for r in
// one query each, for the facades that merge per group themselves.
func loadActivity(ctx context.Context, userID int, r analysis.Range, kinds ...analysis.ActivityKind) ([]analysis.TargetRecord, []analysis.ActivityRecord, error) {
	targets, err := models.NewTargetStore().QueryTargets(ctx, userID, r.Start, r.End)
	if err != nil {
		return nil, nil, err
	}
	acts, err := models.NewActivityStore().QueryActivities(ctx, userID, kinds, r.Start, r.End)
	if err != nil {
		return nil, nil, err
	}
	return targets, acts, nil
}

// IsStoreError reports whether err came from a failed store query.
func IsStoreError(err error) bool {
	var se *analysis.StoreError
	return errors.As(err, &se)
}
