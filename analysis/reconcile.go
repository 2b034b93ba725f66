package analysis

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// ActivityRecord is one unit of tracked work attributed to a user.
type ActivityRecord struct {
	UserID     int
	Kind       ActivityKind
	OccurredAt time.Time
	Outcome    string
	Quantity   int
	SourceID   int
	Actor      string
}

// TargetRecord holds the planned numbers of one user for one calendar day.
type TargetRecord struct {
	UserID            int
	BucketDate        time.Time
	PlannedCalls      int
	PlannedJds        int
	PlannedResumes    int
	PlannedInterviews int
	PlannedFollowUps  int
	PlannedColleges   int
}

// ActivityStore returns the activity of userID of the given kinds whose
// timestamp falls on a calendar day in [from, to], both inclusive civil dates.
// Results are unsorted.
type ActivityStore interface {
	QueryActivities(ctx context.Context, userID int, kinds []ActivityKind, from, to time.Time) ([]ActivityRecord, error)
}

// TargetStore returns the targets of userID with a bucket date in [from, to].
type TargetStore interface {
	QueryTargets(ctx context.Context, userID int, from, to time.Time) ([]TargetRecord, error)
}

// Tally is the planned/achieved state of one dimension in one bucket.
type Tally struct {
	Planned    int            `json:"planned"`
	Achieved   int            `json:"achieved"`
	Categories map[string]int `json:"categories,omitempty"`
	Percent    Percent        `json:"percent"`
}

func newTally(d Dimension) *Tally {
	t := &Tally{}
	if d.Categorized() {
		t.Categories = make(map[string]int, len(d.Categories))
		for _, c := range d.Categories {
			t.Categories[c.Key] = 0
		}
	}
	return t
}

func (t *Tally) add(o *Tally) {
	t.Planned += o.Planned
	t.Achieved += o.Achieved
	for k, v := range o.Categories {
		t.Categories[k] += v
	}
}

// Row is one reconciled bucket, or the totals row.
type Row struct {
	Key     string
	Label   string
	Start   time.Time
	End     time.Time
	Month   string
	Tallies map[DimensionKey]*Tally

	dims []Dimension
}

// Tally returns the tally of k, or an empty one when k was not reconciled.
func (r Row) Tally(k DimensionKey) *Tally {
	if t, ok := r.Tallies[k]; ok {
		return t
	}
	return &Tally{}
}

// MarshalJSON flattens the row into
// {date, day, planned<Dim>, achieved<Dim>, <dim>AchievementPercent, <category>...}.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2+len(r.dims)*4)
	if r.Key != "" {
		out["date"] = r.Key
		out["day"] = r.Label
	}
	if r.Month != "" {
		out["month"] = r.Month
	}
	for _, d := range r.dims {
		t := r.Tally(d.Key)
		out["planned"+d.Name] = t.Planned
		out["achieved"+d.Name] = t.Achieved
		out[string(d.Key)+"AchievementPercent"] = t.Percent
		for k, v := range t.Categories {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Reconciliation is the full per-bucket result plus totals.
type Reconciliation struct {
	Dimensions []DimensionKey
	Rows       []Row
	Totals     Row
}

// Engine reconciles targets against activity for one user.
type Engine struct {
	Activities ActivityStore
	Targets    TargetStore
	// Location decides the calendar day of an activity timestamp.
	Location *time.Location
}

func NewEngine(activities ActivityStore, targets TargetStore, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{Activities: activities, Targets: targets, Location: loc}
}

// Reconcile runs one target query and one activity query for the whole bucket
// span and merges them. Any store failure aborts with a *StoreError.
func (e *Engine) Reconcile(ctx context.Context, userID int, buckets []DateBucket, keys []DimensionKey) (*Reconciliation, error) {
	dims, err := lookupDimensions(keys)
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return Merge(buckets, keys, nil, nil, e.Location)
	}
	from, to := buckets[0].Start, buckets[len(buckets)-1].End

	targets, err := e.Targets.QueryTargets(ctx, userID, from, to)
	if err != nil {
		return nil, wrapStoreError("query targets", err)
	}

	kinds := make([]ActivityKind, 0, len(dims))
	for _, d := range dims {
		kinds = append(kinds, d.Kind)
	}
	activities, err := e.Activities.QueryActivities(ctx, userID, kinds, from, to)
	if err != nil {
		return nil, wrapStoreError("query activities", err)
	}

	return Merge(buckets, keys, targets, activities, e.Location)
}

// Merge is the pure part of Reconcile. Targets are matched on their civil
// date; activities on the civil date of OccurredAt in loc.
func Merge(buckets []DateBucket, keys []DimensionKey, targets []TargetRecord, activities []ActivityRecord, loc *time.Location) (*Reconciliation, error) {
	dims, err := lookupDimensions(keys)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	rows := make([]Row, len(buckets))
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		rows[i] = Row{Key: b.Key, Label: b.Label, Start: b.Start, End: b.End, Tallies: make(map[DimensionKey]*Tally, len(dims)), dims: dims}
		for _, d := range dims {
			rows[i].Tallies[d.Key] = newTally(d)
		}
		index[b.Key] = i
	}

	locate := func(day time.Time) (int, bool) {
		if len(buckets) == 0 {
			return 0, false
		}
		key := day.Format(DayLayout)
		if buckets[0].Granularity == GranularityMonth {
			key = day.Format(MonthLayout)
		}
		i, ok := index[key]
		if !ok {
			return 0, false
		}
		b := buckets[i]
		if day.Before(b.Start) || day.After(b.End) {
			return 0, false
		}
		return i, true
	}

	for _, t := range targets {
		i, ok := locate(CivilDate(t.BucketDate))
		if !ok {
			continue
		}
		for _, d := range dims {
			rows[i].Tallies[d.Key].Planned += d.Planned(t)
		}
	}

	for _, a := range activities {
		i, ok := locate(CivilDate(a.OccurredAt.In(loc)))
		if !ok {
			continue
		}
		qty := a.Quantity
		if qty < 0 {
			qty = 0
		}
		for _, d := range dims {
			if d.Kind != a.Kind {
				continue
			}
			tally := rows[i].Tallies[d.Key]
			if d.Categorized() {
				cat, ok := ClassifyOutcome(d, a.Outcome)
				if !ok {
					continue
				}
				tally.Categories[cat] += qty
			}
			tally.Achieved += qty
		}
	}

	totals := Row{Tallies: make(map[DimensionKey]*Tally, len(dims)), dims: dims}
	for _, d := range dims {
		totals.Tallies[d.Key] = newTally(d)
	}
	for i := range rows {
		for _, d := range dims {
			t := rows[i].Tallies[d.Key]
			t.Percent = AchievementPercent(t.Achieved, t.Planned)
			totals.Tallies[d.Key].add(t)
		}
	}
	for _, d := range dims {
		t := totals.Tallies[d.Key]
		t.Percent = AchievementPercent(t.Achieved, t.Planned)
	}
	if len(buckets) > 0 {
		totals.Start, totals.End = buckets[0].Start, buckets[len(buckets)-1].End
	}

	resolved := make([]DimensionKey, len(dims))
	for i, d := range dims {
		resolved[i] = d.Key
	}
	return &Reconciliation{Dimensions: resolved, Rows: rows, Totals: totals}, nil
}

// GroupActivities splits records by key, returning the groups and their keys in sorted order.
func GroupActivities(records []ActivityRecord, key func(ActivityRecord) string) (map[string][]ActivityRecord, []string) {
	groups := make(map[string][]ActivityRecord)
	for _, r := range records {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return groups, keys
}

// SpanOf returns the civil-date range from the earliest to the latest record.
func SpanOf(records []ActivityRecord, loc *time.Location) (Range, bool) {
	if len(records) == 0 {
		return Range{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	var r Range
	for i, a := range records {
		d := CivilDate(a.OccurredAt.In(loc))
		if i == 0 || d.Before(r.Start) {
			r.Start = d
		}
		if i == 0 || d.After(r.End) {
			r.End = d
		}
	}
	return r, true
}
