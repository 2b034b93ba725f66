package reports

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
)

var resumeDimensions = []analysis.DimensionKey{analysis.DimResumes}

// ResumeCategories counts resumes per follow-up response.
type ResumeCategories struct {
	ResumesReceived   int `json:"resumes_received"`
	SendingIn1To2Days int `json:"sending_in_1-2_days"`
	Delayed           int `json:"delayed"`
	NoResponse        int `json:"no_response"`
	Unprofessional    int `json:"unprofessional"`
}

func resumeCategories(t *analysis.Tally) ResumeCategories {
	return ResumeCategories{
		ResumesReceived:   t.Categories["resumes_received"],
		SendingIn1To2Days: t.Categories["sending_in_1-2_days"],
		Delayed:           t.Categories["delayed"],
		NoResponse:        t.Categories["no_response"],
		Unprofessional:    t.Categories["unprofessional"],
	}
}

// ResumePeriod is one day or month of resume follow-up.
type ResumePeriod struct {
	Period       string  `json:"period"`
	FollowUpBy   *string `json:"followUpBy"`
	ResumeTarget int     `json:"resumetarget"`
	TotalResumes int     `json:"totalResumes"`
	ResumeCategories
	Efficiency analysis.Percent `json:"efficiency"`
}

type ResumeTotals struct {
	TotalResumeTarget      int              `json:"totalResumeTarget"`
	TotalAchievedResumes   int              `json:"totalAchievedResumes"`
	ResumeEfficiency       analysis.Percent `json:"resumeEfficiency"`
	TotalFollowUpTarget    int              `json:"totalFollowUpTarget"`
	TotalAchievedFollowUps int              `json:"totalAchievedFollowUps"`
	FollowUpEfficiency     analysis.Percent `json:"followUpEfficiency"`
	BreakdownTotals        ResumeCategories `json:"breakdownTotals"`
}

type ResumeFollowUpAnalysis struct {
	UserID    int                  `json:"userId"`
	Period    analysis.Granularity `json:"period"`
	FromDate  string               `json:"fromDate"`
	ToDate    string               `json:"toDate"`
	Breakdown []ResumePeriod       `json:"breakdown"`
	Totals    ResumeTotals         `json:"totals"`
}

// CoSheetResumeAnalysis is the follow-up of one call sheet row over its own active span.
type CoSheetResumeAnalysis struct {
	CoSheetID     int              `json:"coSheetId"`
	FollowUpUsers []string         `json:"followUpUsers"`
	Breakdown     []ResumePeriod   `json:"breakdown"`
	TotalResumes  int              `json:"totalResumes"`
	TotalTarget   int              `json:"totalTarget"`
	Efficiency    analysis.Percent `json:"efficiency"`
}

// FollowUpResumeAnalysis is the follow-up done by one person over the requested span.
type FollowUpResumeAnalysis struct {
	FollowUpBy   string           `json:"followUpBy"`
	Breakdown    []ResumePeriod   `json:"breakdown"`
	TotalResumes int              `json:"totalResumes"`
	TotalTarget  int              `json:"totalTarget"`
	Efficiency   analysis.Percent `json:"efficiency"`
}

// latestActors maps each bucket key to the follow-up owner of its newest record.
func latestActors(acts []analysis.ActivityRecord, g analysis.Granularity, loc *time.Location) map[string]string {
	type seen struct {
		at    time.Time
		actor string
	}
	latest := make(map[string]seen)
	for _, a := range acts {
		if a.Actor == "" {
			continue
		}
		k := bucketKey(a.OccurredAt, g, loc)
		if cur, ok := latest[k]; !ok || !a.OccurredAt.Before(cur.at) {
			latest[k] = seen{at: a.OccurredAt, actor: a.Actor}
		}
	}
	out := make(map[string]string, len(latest))
	for k, v := range latest {
		out[k] = v.actor
	}
	return out
}

func resumePeriods(rec *analysis.Reconciliation, actors map[string]string) []ResumePeriod {
	periods := make([]ResumePeriod, 0, len(rec.Rows))
	for _, row := range rec.Rows {
		t := row.Tally(analysis.DimResumes)
		p := ResumePeriod{
			Period:           row.Key,
			ResumeTarget:     t.Planned,
			TotalResumes:     t.Achieved,
			ResumeCategories: resumeCategories(t),
			Efficiency:       t.Percent,
		}
		if actor, ok := actors[row.Key]; ok {
			actor := actor
			p.FollowUpBy = &actor
		}
		periods = append(periods, p)
	}
	return periods
}

func resolvePeriod(req analysis.RangeRequest, period string) (analysis.Range, analysis.Granularity, error) {
	g, err := analysis.ParseGranularity(period, analysis.GranularityDay)
	if err != nil {
		return analysis.Range{}, "", err
	}
	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return analysis.Range{}, "", err
	}
	return r, g, nil
}

// GetResumeFollowUpAnalysis breaks the user's resume follow-up down per day or month
// and rates it against the resume and follow-up targets. Defaults to the current month.
func GetResumeFollowUpAnalysis(ctx context.Context, userID int, req analysis.RangeRequest, period string) (out *ResumeFollowUpAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	r, g, err := resolvePeriod(req, period)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetResumeFollowUpAnalysis", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "resume_follow_up", start, map[string]any{"user_id": userID, "period": g})

	from, to := formatRange(r)
	out = &ResumeFollowUpAnalysis{UserID: userID, Period: g, FromDate: from, ToDate: to, Breakdown: []ResumePeriod{}}
	known, err := userExists(ctx, userID)
	if err != nil || !known {
		return out, err
	}

	buckets, err := analysis.BuildBuckets(r, g)
	if err != nil {
		return nil, err
	}
	loc := config.Location()
	targets, acts, err := loadActivity(ctx, userID, r, analysis.KindResumeReceived)
	if err != nil {
		return nil, err
	}
	rec, err := analysis.Merge(buckets, resumeDimensions, targets, acts, loc)
	if err != nil {
		return nil, err
	}
	out.Breakdown = resumePeriods(rec, latestActors(acts, g, loc))

	total := rec.Totals.Tally(analysis.DimResumes)
	followUpTarget := 0
	for _, t := range targets {
		followUpTarget += t.PlannedFollowUps
	}
	out.Totals = ResumeTotals{
		TotalResumeTarget:      total.Planned,
		TotalAchievedResumes:   total.Achieved,
		ResumeEfficiency:       total.Percent,
		TotalFollowUpTarget:    followUpTarget,
		TotalAchievedFollowUps: total.Achieved,
		FollowUpEfficiency:     analysis.AchievementPercent(total.Achieved, followUpTarget),
		BreakdownTotals:        resumeCategories(total),
	}
	return out, nil
}

// GetResumeAnalysisPerCoSheet reconciles each call sheet row separately over the
// days (or months) from its first to its last resume in the range.
func GetResumeAnalysisPerCoSheet(ctx context.Context, userID int, req analysis.RangeRequest, period string) (out []CoSheetResumeAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	r, g, err := resolvePeriod(req, period)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetResumeAnalysisPerCoSheet", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "resume_per_cosheet", start, map[string]any{"user_id": userID, "period": g})

	out = []CoSheetResumeAnalysis{}
	known, err := userExists(ctx, userID)
	if err != nil || !known {
		return out, err
	}
	loc := config.Location()
	targets, acts, err := loadActivity(ctx, userID, r, analysis.KindResumeReceived)
	if err != nil {
		return nil, err
	}

	groups, keys := analysis.GroupActivities(acts, func(a analysis.ActivityRecord) string { return strconv.Itoa(a.SourceID) })
	for _, k := range keys {
		group := groups[k]
		active, _ := analysis.SpanOf(group, loc)
		buckets, err := analysis.BuildBuckets(active, g)
		if err != nil {
			return nil, err
		}
		rec, err := analysis.Merge(buckets, resumeDimensions, targets, group, loc)
		if err != nil {
			return nil, err
		}
		total := rec.Totals.Tally(analysis.DimResumes)
		out = append(out, CoSheetResumeAnalysis{
			CoSheetID:     group[0].SourceID,
			FollowUpUsers: followUpUsers(group),
			Breakdown:     resumePeriods(rec, latestActors(group, g, loc)),
			TotalResumes:  total.Achieved,
			TotalTarget:   total.Planned,
			Efficiency:    total.Percent,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoSheetID < out[j].CoSheetID })
	return out, nil
}

func followUpUsers(acts []analysis.ActivityRecord) []string {
	users := []string{}
	seen := map[string]bool{}
	for _, a := range acts {
		if a.Actor == "" || seen[a.Actor] {
			continue
		}
		seen[a.Actor] = true
		users = append(users, a.Actor)
	}
	sort.Strings(users)
	return users
}

const unknownFollowUp = "Unknown"

// GetResumeAnalysisPerFollowUp reconciles the user's resumes once per follow-up owner
// over the whole requested span.
func GetResumeAnalysisPerFollowUp(ctx context.Context, userID int, req analysis.RangeRequest, period string) (out []FollowUpResumeAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	r, g, err := resolvePeriod(req, period)
	if err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetResumeAnalysisPerFollowUp", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "resume_per_follow_up", start, map[string]any{"user_id": userID, "period": g})

	out = []FollowUpResumeAnalysis{}
	known, err := userExists(ctx, userID)
	if err != nil || !known {
		return out, err
	}
	buckets, err := analysis.BuildBuckets(r, g)
	if err != nil {
		return nil, err
	}
	loc := config.Location()
	targets, acts, err := loadActivity(ctx, userID, r, analysis.KindResumeReceived)
	if err != nil {
		return nil, err
	}

	groups, keys := analysis.GroupActivities(acts, func(a analysis.ActivityRecord) string {
		if a.Actor == "" {
			return unknownFollowUp
		}
		return a.Actor
	})
	for _, k := range keys {
		rec, err := analysis.Merge(buckets, resumeDimensions, targets, groups[k], loc)
		if err != nil {
			return nil, err
		}
		total := rec.Totals.Tally(analysis.DimResumes)
		out = append(out, FollowUpResumeAnalysis{
			FollowUpBy:   k,
			Breakdown:    resumePeriods(rec, nil),
			TotalResumes: total.Achieved,
			TotalTarget:  total.Planned,
			Efficiency:   total.Percent,
		})
	}
	return out, nil
}
