package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	unknownCollege      = "Unknown College"
	individualPerformer = "Individual"
	displayDateLayout   = "02/01/2006"
)

// counter counts per key and remembers the order keys first appeared in.
type counter struct {
	keys   []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string, n int) {
	if _, ok := c.counts[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.counts[key] += n
}

// numbered renders "1. key (n)", "2. key (n)" in insertion order.
func (c *counter) numbered() []string {
	out := make([]string, 0, len(c.keys))
	for i, k := range c.keys {
		out = append(out, fmt.Sprintf("%d. %s (%d)", i+1, k, c.counts[k]))
	}
	return out
}

func numberedList(items []string) []string {
	out := make([]string, 0, len(items))
	for i, s := range items {
		out = append(out, fmt.Sprintf("%d. %s", i+1, s))
	}
	return out
}

func collegeOf(r *models.StudentResume) string {
	if r.CoSheet != nil {
		if name := strings.TrimSpace(utils.DereferencePtr(r.CoSheet.CollegeName)); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(utils.DereferencePtr(r.CollegeName)); name != "" {
		return name
	}
	return unknownCollege
}

func followUpOf(r *models.StudentResume, fallback string) string {
	if v := strings.TrimSpace(utils.DereferencePtr(r.FollowupBy)); v != "" {
		return v
	}
	return fallback
}

// resumeWindow filters on resume_date when both ends are given, as the global
// resume reports do. Otherwise every resume is included.
func resumeWindow(db *gorm.DB, fromDate, toDate string) (*gorm.DB, error) {
	if strings.TrimSpace(fromDate) == "" || strings.TrimSpace(toDate) == "" {
		return db, nil
	}
	r, err := analysis.ResolveRange(analysis.RangeRequest{FromDate: fromDate, ToDate: toDate}, analysis.DefaultToday, config.Now())
	if err != nil {
		return nil, err
	}
	lo, hi := analysis.DayBounds(r.Start, r.End, config.Location())
	return db.Where("resume_date >= ? AND resume_date < ?", lo.UTC(), hi.UTC()), nil
}

type CollegeAnalysis struct {
	Sr                        int      `json:"sr"`
	CollegeName               string   `json:"collegeName"`
	NumberOfStudentResumes    int      `json:"numberOfStudentResumes"`
	DateOfResumesReceived     []string `json:"dateOfResumesReceived"`
	DateOfInterviewsScheduled []string `json:"dateOfInterviewsScheduled"`
}

// GetCollegeAnalysis groups the user's student resumes by college with their
// resume (distinct) and interview dates.
func GetCollegeAnalysis(ctx context.Context, userID int) (out []CollegeAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetCollegeAnalysis", userID)
	defer func() { finish(span, err) }()

	db := config.GetDB()
	var rows []*models.StudentResume
	if err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("college_name").Order("id").
		Find(&rows).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query student resumes", Err: err}
	}

	loc := config.Location()
	type group struct {
		count      int
		resumes    []string
		seen       map[string]bool
		interviews []string
	}
	var order []string
	groups := map[string]*group{}
	for _, r := range rows {
		name := strings.TrimSpace(utils.DereferencePtr(r.CollegeName))
		if name == "" {
			name = unknownCollege
		}
		g, ok := groups[name]
		if !ok {
			g = &group{seen: map[string]bool{}}
			groups[name] = g
			order = append(order, name)
		}
		g.count++
		if r.ResumeDate != nil {
			d := r.ResumeDate.In(loc).Format(displayDateLayout)
			if !g.seen[d] {
				g.seen[d] = true
				g.resumes = append(g.resumes, d)
			}
		}
		if r.InterviewDate != nil {
			g.interviews = append(g.interviews, r.InterviewDate.In(loc).Format(displayDateLayout))
		}
	}

	out = make([]CollegeAnalysis, 0, len(order))
	for i, name := range order {
		g := groups[name]
		out = append(out, CollegeAnalysis{
			Sr:                        i + 1,
			CollegeName:               name,
			NumberOfStudentResumes:    g.count,
			DateOfResumesReceived:     numberedList(g.resumes),
			DateOfInterviewsScheduled: numberedList(g.interviews),
		})
	}
	return out, nil
}

type CalendarDay struct {
	Date                string   `json:"date"`
	Day                 string   `json:"day"`
	ResumesReceived     int      `json:"resumesReceived"`
	ResumesColleges     []string `json:"resumesColleges"`
	InterviewsScheduled int      `json:"interviewsScheduled"`
	InterviewsColleges  []string `json:"interviewsColleges"`
}

// GetDailyCalendarAnalysis lists, for each day with activity, the resumes received and
// interviews scheduled per college. Defaults to the current month.
func GetDailyCalendarAnalysis(ctx context.Context, userID int, req analysis.RangeRequest) (out []CalendarDay, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetDailyCalendarAnalysis", userID)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "daily_calendar", start, map[string]any{"user_id": userID})

	r, err := analysis.ResolveRange(req, analysis.DefaultCurrentMonth, config.Now())
	if err != nil {
		return nil, err
	}
	loc := config.Location()
	lo, hi := analysis.DayBounds(r.Start, r.End, loc)

	db := config.GetDB()
	var resumes, interviews []*models.StudentResume
	if err := db.WithContext(ctx).
		Where("user_id = ? AND resume_date >= ? AND resume_date < ?", userID, lo.UTC(), hi.UTC()).
		Find(&resumes).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query resumes", Err: err}
	}
	if err := db.WithContext(ctx).
		Where("user_id = ? AND interview_date >= ? AND interview_date < ?", userID, lo.UTC(), hi.UTC()).
		Find(&interviews).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query interviews", Err: err}
	}

	type day struct {
		resumes    map[string]int
		interviews map[string]int
	}
	days := map[string]*day{}
	get := func(k string) *day {
		d, ok := days[k]
		if !ok {
			d = &day{resumes: map[string]int{}, interviews: map[string]int{}}
			days[k] = d
		}
		return d
	}
	for _, s := range resumes {
		get(analysis.DayKey(*s.ResumeDate, loc)).resumes[collegeOf(s)]++
	}
	for _, s := range interviews {
		get(analysis.DayKey(*s.InterviewDate, loc)).interviews[collegeOf(s)]++
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out = make([]CalendarDay, 0, len(keys))
	for _, k := range keys {
		d := days[k]
		date, _ := analysis.ParseDate(k)
		row := CalendarDay{Date: k, Day: date.Weekday().String()}
		row.ResumesReceived, row.ResumesColleges = sortedCounts(d.resumes)
		row.InterviewsScheduled, row.InterviewsColleges = sortedCounts(d.interviews)
		out = append(out, row)
	}
	return out, nil
}

// sortedCounts numbers the colleges alphabetically and returns the total.
func sortedCounts(m map[string]int) (int, []string) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	c := newCounter()
	total := 0
	for _, n := range names {
		c.add(n, m[n])
		total += m[n]
	}
	return total, c.numbered()
}

type WorkAnalysis struct {
	Sr               int      `json:"sr"`
	FollowupBy       string   `json:"followupBy"`
	CountOfColleges  int      `json:"countOfColleges"`
	TotalResumes     int      `json:"totalResumes"`
	CollegeName      []string `json:"collegeName"`
	DateOfOnboarding []string `json:"dateOfOnboarding"`
}

func loadResumes(ctx context.Context, fromDate, toDate string) ([]*models.StudentResume, error) {
	db := config.GetDB().WithContext(ctx).Preload("CoSheet", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "college_name")
	})
	db, err := resumeWindow(db, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	var rows []*models.StudentResume
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query student resumes", Err: err}
	}
	return rows, nil
}

// GetUserWorkAnalysis summarizes, per follow-up owner across all users, the colleges
// worked and resumes collected.
func GetUserWorkAnalysis(ctx context.Context, fromDate, toDate string) (out []WorkAnalysis, err error) {
	ctx, span := startSpan(ctx, "GetUserWorkAnalysis", 0)
	defer func() { finish(span, err) }()
	start := time.Now()
	defer logSlowReport(ctx, "user_work_analysis", start, map[string]any{"from": fromDate, "to": toDate})

	rows, err := loadResumes(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	type work struct {
		colleges *counter
		total    int
		dates    []string
		seen     map[string]bool
	}
	var order []string
	byOwner := map[string]*work{}
	loc := config.Location()
	for _, r := range rows {
		owner := followUpOf(r, unknownFollowUp)
		w, ok := byOwner[owner]
		if !ok {
			w = &work{colleges: newCounter(), seen: map[string]bool{}}
			byOwner[owner] = w
			order = append(order, owner)
		}
		w.colleges.add(collegeOf(r), 1)
		w.total++
		if r.ResumeDate != nil {
			d := analysis.DayKey(*r.ResumeDate, loc) + " (1)"
			if !w.seen[d] {
				w.seen[d] = true
				w.dates = append(w.dates, d)
			}
		}
	}

	out = make([]WorkAnalysis, 0, len(order))
	for i, owner := range order {
		w := byOwner[owner]
		dates := w.dates
		if dates == nil {
			dates = []string{}
		}
		out = append(out, WorkAnalysis{
			Sr:               i + 1,
			FollowupBy:       owner,
			CountOfColleges:  len(w.colleges.keys),
			TotalResumes:     w.total,
			CollegeName:      w.colleges.numbered(),
			DateOfOnboarding: dates,
		})
	}
	return out, nil
}

type RAnalysis struct {
	TotalResumesReceived      int      `json:"totalResumesReceived"`
	TotalInterviewsScheduled  int      `json:"totalInterviewsScheduled"`
	TotalCollegesResponses    int      `json:"totalCollegesResponses"`
	AverageResponsePerCollege float64  `json:"averageResponsePerCollege"`
	TopPerformers             []string `json:"topPerformers"`
	LowPerformers             []string `json:"lowPerformers"`
}

// GetRAnalysis is the resume overview: totals, responses per college and the
// three strongest and weakest follow-up owners.
func GetRAnalysis(ctx context.Context, fromDate, toDate string) (out *RAnalysis, err error) {
	ctx, span := startSpan(ctx, "GetRAnalysis", 0)
	defer func() { finish(span, err) }()

	rows, err := loadResumes(ctx, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	out = &RAnalysis{TopPerformers: []string{}, LowPerformers: []string{}}
	colleges := map[string]bool{}
	owners := newCounter()
	for _, r := range rows {
		out.TotalResumesReceived++
		if r.InterviewDate != nil {
			out.TotalInterviewsScheduled++
		}
		colleges[collegeOf(r)] = true
		owners.add(followUpOf(r, individualPerformer), 1)
	}
	out.TotalCollegesResponses = len(colleges)
	if len(colleges) > 0 {
		avg := decimal.NewFromInt(int64(out.TotalResumesReceived)).
			Div(decimal.NewFromInt(int64(len(colleges)))).
			Round(1)
		out.AverageResponsePerCollege = avg.InexactFloat64()
	}

	ranked := append([]string(nil), owners.keys...)
	sort.SliceStable(ranked, func(i, j int) bool { return owners.counts[ranked[i]] > owners.counts[ranked[j]] })

	top := map[string]bool{}
	for i, name := range ranked {
		if i >= 3 {
			break
		}
		top[name] = true
		out.TopPerformers = append(out.TopPerformers, fmt.Sprintf("%d. %s (%d)", i+1, name, owners.counts[name]))
	}
	tail := ranked
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	for i, name := range tail {
		if top[name] {
			continue
		}
		out.LowPerformers = append(out.LowPerformers, fmt.Sprintf("%d. %s (%d)", i+1, name, owners.counts[name]))
	}
	return out, nil
}

type UserTargetAnalysis struct {
	FollowupBy            string `json:"followupBy"`
	CollegeTarget         int    `json:"collegeTarget"`
	CollegesAchieved      int    `json:"collegesAchieved"`
	InterviewsTarget      int    `json:"interviewsTarget"`
	InterviewsAchieved    int    `json:"interviewsAchieved"`
	ResumesReceivedTarget int    `json:"resumesReceivedTarget"`
	ResumesAchieved       int    `json:"resumesAchieved"`
}

// GetUserTargetAnalysis sets the user's summed college, interview and resume targets
// against what each follow-up owner achieved. Defaults to today.
func GetUserTargetAnalysis(ctx context.Context, userID int, req analysis.RangeRequest) (out []UserTargetAnalysis, err error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	ctx, span := startSpan(ctx, "GetUserTargetAnalysis", userID)
	defer func() { finish(span, err) }()

	r, err := analysis.ResolveRange(req, analysis.DefaultToday, config.Now())
	if err != nil {
		return nil, err
	}
	lo, hi := analysis.DayBounds(r.Start, r.End, config.Location())

	db := config.GetDB()
	var rows []*models.StudentResume
	if err := db.WithContext(ctx).
		Where("user_id = ? AND resume_date >= ? AND resume_date < ?", userID, lo.UTC(), hi.UTC()).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, &analysis.StoreError{Op: "query student resumes", Err: err}
	}
	target, err := models.SumTargets(ctx, userID, r.Start, r.End)
	if err != nil {
		return nil, &analysis.StoreError{Op: "sum targets", Err: err}
	}

	type achieved struct {
		colleges   map[string]bool
		resumes    int
		interviews int
	}
	var order []string
	byOwner := map[string]*achieved{}
	for _, s := range rows {
		owner := followUpOf(s, unknownFollowUp)
		a, ok := byOwner[owner]
		if !ok {
			a = &achieved{colleges: map[string]bool{}}
			byOwner[owner] = a
			order = append(order, owner)
		}
		if name := strings.TrimSpace(utils.DereferencePtr(s.CollegeName)); name != "" {
			a.colleges[name] = true
		}
		a.resumes++
		if s.InterviewDate != nil {
			a.interviews++
		}
	}

	out = make([]UserTargetAnalysis, 0, len(order))
	for _, owner := range order {
		a := byOwner[owner]
		out = append(out, UserTargetAnalysis{
			FollowupBy:            owner,
			CollegeTarget:         target.PlannedColleges,
			CollegesAchieved:      len(a.colleges),
			InterviewsTarget:      target.PlannedInterviews,
			InterviewsAchieved:    a.interviews,
			ResumesReceivedTarget: target.PlannedResumes,
			ResumesAchieved:       a.resumes,
		})
	}
	return out, nil
}
