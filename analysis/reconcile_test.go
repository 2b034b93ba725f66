package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeTargets struct {
	records []TargetRecord
	calls   int
	err     error
}

func (f *fakeTargets) QueryTargets(ctx context.Context, userID int, from, to time.Time) ([]TargetRecord, error) {
	f.calls++
	return f.records, f.err
}

type fakeActivities struct {
	records []ActivityRecord
	calls   int
	kinds   []ActivityKind
	err     error
}

func (f *fakeActivities) QueryActivities(ctx context.Context, userID int, kinds []ActivityKind, from, to time.Time) ([]ActivityRecord, error) {
	f.calls++
	f.kinds = kinds
	return f.records, f.err
}

func day(s string) time.Time {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string, hour int) time.Time {
	return day(s).Add(time.Duration(hour) * time.Hour)
}

func buckets(t *testing.T, req RangeRequest, g Granularity) []DateBucket {
	t.Helper()
	r, err := ResolveRange(req, DefaultToday, time.Now())
	if err != nil {
		t.Fatalf("ResolveRange: %v", err)
	}
	b, err := BuildBuckets(r, g)
	if err != nil {
		t.Fatalf("BuildBuckets: %v", err)
	}
	return b
}

func TestReconcile_SingleDayScenario(t *testing.T) {
	targets := &fakeTargets{records: []TargetRecord{{UserID: 42, BucketDate: day("2025-03-01"), PlannedCalls: 10}}}
	acts := &fakeActivities{records: []ActivityRecord{
		{UserID: 42, Kind: KindCall, OccurredAt: at("2025-03-01", 9), Outcome: "connected", Quantity: 1},
		{UserID: 42, Kind: KindCall, OccurredAt: at("2025-03-01", 11), Outcome: "Connected ", Quantity: 1},
		{UserID: 42, Kind: KindCall, OccurredAt: at("2025-03-01", 15), Outcome: "busy", Quantity: 1},
	}}
	e := NewEngine(acts, targets, time.UTC)

	res, err := e.Reconcile(context.Background(), 42, buckets(t, RangeRequest{FromDate: "2025-03-01", ToDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimCalls})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	calls := res.Rows[0].Tally(DimCalls)
	if calls.Planned != 10 || calls.Achieved != 3 {
		t.Fatalf("expected planned=10 achieved=3, got %+v", calls)
	}
	if calls.Categories["connected"] != 2 || calls.Categories["busy"] != 1 {
		t.Fatalf("unexpected categories %v", calls.Categories)
	}
	if calls.Percent.String() != "30.00" {
		t.Fatalf("expected 30.00, got %s", calls.Percent)
	}
	if targets.calls != 1 || acts.calls != 1 {
		t.Fatalf("expected one query per store, got targets=%d activities=%d", targets.calls, acts.calls)
	}
}

func TestReconcile_EmptyMonth(t *testing.T) {
	e := NewEngine(&fakeActivities{}, &fakeTargets{}, time.UTC)
	b := buckets(t, RangeRequest{Month: "2025-03"}, GranularityDay)
	res, err := e.Reconcile(context.Background(), 42, b, []DimensionKey{DimCalls, DimJds})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Rows) != 31 {
		t.Fatalf("expected 31 rows, got %d", len(res.Rows))
	}
	for _, row := range res.Rows {
		for _, k := range []DimensionKey{DimCalls, DimJds} {
			tally := row.Tally(k)
			if tally.Planned != 0 || tally.Achieved != 0 || tally.Percent.String() != "0.00" {
				t.Fatalf("row %s %s not zero: %+v", row.Key, k, tally)
			}
		}
	}
	r, _ := ResolveRange(RangeRequest{Month: "2025-03"}, DefaultToday, time.Now())
	if MonthLabel(r) != "March 2025" {
		t.Fatalf("unexpected month label %s", MonthLabel(r))
	}
}

func TestReconcile_QueryCountIndependentOfRange(t *testing.T) {
	targets := &fakeTargets{}
	acts := &fakeActivities{}
	e := NewEngine(acts, targets, time.UTC)
	b := buckets(t, RangeRequest{FromDate: "2025-01-01", ToDate: "2025-12-31"}, GranularityDay)
	if _, err := e.Reconcile(context.Background(), 1, b, []DimensionKey{DimCalls, DimJds, DimResumes, DimInterviews}); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if targets.calls != 1 || acts.calls != 1 {
		t.Fatalf("expected 1+1 queries for 365 buckets, got %d+%d", targets.calls, acts.calls)
	}
	if len(acts.kinds) != 4 {
		t.Fatalf("expected 4 kinds requested, got %v", acts.kinds)
	}
}

func TestReconcile_ZeroTargetAndAdditivity(t *testing.T) {
	targets := &fakeTargets{records: []TargetRecord{
		{BucketDate: day("2025-03-02"), PlannedJds: 3},
	}}
	acts := &fakeActivities{records: []ActivityRecord{
		{Kind: KindJdSent, OccurredAt: at("2025-03-01", 10), Quantity: 1},
		{Kind: KindJdSent, OccurredAt: at("2025-03-02", 10), Quantity: 1},
		{Kind: KindJdSent, OccurredAt: at("2025-03-02", 12), Quantity: 6},
		{Kind: KindJdSent, OccurredAt: at("2025-03-03", 23), Quantity: 2},
	}}
	e := NewEngine(acts, targets, time.UTC)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01", ToDate: "2025-03-03"}, GranularityDay), []DimensionKey{DimJds})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	first := res.Rows[0].Tally(DimJds)
	if first.Planned != 0 || first.Achieved != 1 || first.Percent.String() != "0.00" {
		t.Fatalf("zero target day expected 0 planned and 0.00, got %+v", first)
	}
	second := res.Rows[1].Tally(DimJds)
	if second.Percent.String() != "233.33" {
		t.Fatalf("7/3 expected 233.33, got %s", second.Percent)
	}

	sum := 0
	for _, row := range res.Rows {
		sum += row.Tally(DimJds).Achieved
	}
	totals := res.Totals.Tally(DimJds)
	if sum != totals.Achieved || totals.Achieved != 10 {
		t.Fatalf("totals achieved %d, bucket sum %d", totals.Achieved, sum)
	}
	// recomputed on sums, not averaged: 10/3
	if totals.Percent.String() != "333.33" {
		t.Fatalf("totals percent expected 333.33, got %s", totals.Percent)
	}
}

func TestReconcile_OutcomeClosedSet(t *testing.T) {
	acts := &fakeActivities{records: []ActivityRecord{
		{Kind: KindCall, OccurredAt: at("2025-03-01", 9), Outcome: "Connected ", Quantity: 1},
		{Kind: KindCall, OccurredAt: at("2025-03-01", 9), Outcome: "busyyy", Quantity: 1},
		{Kind: KindCall, OccurredAt: at("2025-03-01", 9), Outcome: "  SWITCH OFF", Quantity: 1},
		{Kind: KindCall, OccurredAt: at("2025-03-01", 9), Outcome: "", Quantity: 1},
	}}
	e := NewEngine(acts, &fakeTargets{}, time.UTC)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimCalls})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	calls := res.Rows[0].Tally(DimCalls)
	if calls.Achieved != 2 || calls.Categories["connected"] != 1 || calls.Categories["switchOff"] != 1 {
		t.Fatalf("unexpected tally %+v", calls)
	}
	if calls.Categories["busy"] != 0 {
		t.Fatalf("busyyy must not count as busy")
	}
}

func TestReconcile_InterviewEmptyStatusIsNotAnswered(t *testing.T) {
	acts := &fakeActivities{records: []ActivityRecord{
		{Kind: KindInterviewConducted, OccurredAt: at("2025-03-01", 9), Outcome: "", Quantity: 1},
		{Kind: KindInterviewConducted, OccurredAt: at("2025-03-01", 9), Outcome: "Selected", Quantity: 1},
	}}
	e := NewEngine(acts, &fakeTargets{records: []TargetRecord{{BucketDate: day("2025-03-01"), PlannedInterviews: 4}}}, time.UTC)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimInterviews})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	iv := res.Rows[0].Tally(DimInterviews)
	if iv.Achieved != 2 || iv.Categories["not-answered"] != 1 || iv.Categories["selected"] != 1 || iv.Percent.String() != "50.00" {
		t.Fatalf("unexpected interview tally %+v", iv)
	}
}

func TestReconcile_ActivityDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	acts := &fakeActivities{records: []ActivityRecord{
		// 2025-03-01 20:00 UTC is 2025-03-02 01:30 IST
		{Kind: KindCall, OccurredAt: at("2025-03-01", 20), Outcome: "connected", Quantity: 1},
	}}
	e := NewEngine(acts, &fakeTargets{}, loc)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01", ToDate: "2025-03-02"}, GranularityDay), []DimensionKey{DimCalls})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if res.Rows[0].Tally(DimCalls).Achieved != 0 || res.Rows[1].Tally(DimCalls).Achieved != 1 {
		t.Fatalf("activity landed on wrong day: %d/%d", res.Rows[0].Tally(DimCalls).Achieved, res.Rows[1].Tally(DimCalls).Achieved)
	}
}

func TestReconcile_MonthGranularitySumsTargets(t *testing.T) {
	targets := &fakeTargets{records: []TargetRecord{
		{BucketDate: day("2025-01-20"), PlannedResumes: 5},
		{BucketDate: day("2025-01-21"), PlannedResumes: 5},
		{BucketDate: day("2025-02-03"), PlannedResumes: 4},
	}}
	acts := &fakeActivities{records: []ActivityRecord{
		{Kind: KindResumeReceived, OccurredAt: at("2025-01-25", 9), Outcome: "Resumes Received", Quantity: 4},
		{Kind: KindResumeReceived, OccurredAt: at("2025-02-10", 9), Outcome: "delayed", Quantity: 1},
	}}
	e := NewEngine(acts, targets, time.UTC)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-01-15", ToDate: "2025-02-28"}, GranularityMonth), []DimensionKey{DimResumes})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	jan := res.Rows[0].Tally(DimResumes)
	if jan.Planned != 10 || jan.Achieved != 4 || jan.Categories["resumes_received"] != 4 || jan.Percent.String() != "40.00" {
		t.Fatalf("unexpected january tally %+v", jan)
	}
	feb := res.Rows[1].Tally(DimResumes)
	if feb.Planned != 4 || feb.Achieved != 1 || feb.Percent.String() != "25.00" {
		t.Fatalf("unexpected february tally %+v", feb)
	}
}

func TestReconcile_InvalidDimensionBeforeQuery(t *testing.T) {
	targets := &fakeTargets{}
	acts := &fakeActivities{}
	e := NewEngine(acts, targets, time.UTC)
	_, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{"emails"})
	var dimErr *InvalidDimensionError
	if !errors.As(err, &dimErr) || dimErr.Key != "emails" {
		t.Fatalf("expected InvalidDimensionError, got %v", err)
	}
	if targets.calls != 0 || acts.calls != 0 {
		t.Fatalf("stores queried for invalid dimension")
	}
}

func TestReconcile_StoreFailureAborts(t *testing.T) {
	boom := errors.New("connection refused")
	e := NewEngine(&fakeActivities{err: boom}, &fakeTargets{}, time.UTC)
	res, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimCalls})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || !errors.Is(err, boom) {
		t.Fatalf("expected StoreError wrapping cause, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no partial result")
	}
}

func TestReconcile_StoreErrorNotWrappedTwice(t *testing.T) {
	inner := &StoreError{Op: "query targets", Err: errors.New("deadlock")}
	e := NewEngine(&fakeActivities{}, &fakeTargets{err: inner}, time.UTC)
	_, err := e.Reconcile(context.Background(), 1, buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimCalls})
	if err == nil || err.Error() != "query targets: deadlock" {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestParseDimensions(t *testing.T) {
	keys, err := ParseDimensions(" Calls, jds ,")
	if err != nil {
		t.Fatalf("ParseDimensions: %v", err)
	}
	if len(keys) != 2 || keys[0] != DimCalls || keys[1] != DimJds {
		t.Fatalf("unexpected keys %v", keys)
	}
	if _, err := ParseDimensions("calls,meetings"); err == nil {
		t.Fatalf("expected error for meetings")
	}
	if _, err := ParseDimensions(""); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestRow_MarshalJSON(t *testing.T) {
	res, err := Merge(buckets(t, RangeRequest{FromDate: "2025-03-01"}, GranularityDay), []DimensionKey{DimCalls}, []TargetRecord{{BucketDate: day("2025-03-01"), PlannedCalls: 4}}, []ActivityRecord{{Kind: KindCall, OccurredAt: at("2025-03-01", 1), Outcome: "busy", Quantity: 1}}, time.UTC)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	b, err := json.Marshal(res.Rows[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["date"] != "2025-03-01" || got["day"] != "Saturday" {
		t.Fatalf("unexpected date/day %v", got)
	}
	if got["plannedCalls"] != float64(4) || got["achievedCalls"] != float64(1) || got["callsAchievementPercent"] != "25.00" || got["busy"] != float64(1) {
		t.Fatalf("unexpected payload %s", b)
	}
}

func TestGroupActivitiesAndSpan(t *testing.T) {
	recs := []ActivityRecord{
		{SourceID: 2, OccurredAt: at("2025-03-05", 1)},
		{SourceID: 1, OccurredAt: at("2025-03-02", 1)},
		{SourceID: 2, OccurredAt: at("2025-03-03", 1)},
	}
	groups, keys := GroupActivities(recs, func(a ActivityRecord) string {
		if a.SourceID == 1 {
			return "a"
		}
		return "b"
	})
	if len(keys) != 2 || keys[0] != "a" || len(groups["b"]) != 2 {
		t.Fatalf("unexpected grouping %v %v", keys, groups)
	}
	span, ok := SpanOf(groups["b"], time.UTC)
	if !ok || span.Start.Format(DayLayout) != "2025-03-03" || span.End.Format(DayLayout) != "2025-03-05" {
		t.Fatalf("unexpected span %+v", span)
	}
}
