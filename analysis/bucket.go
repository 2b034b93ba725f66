package analysis

import (
	"strconv"
	"strings"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// ParseGranularity accepts the request spellings used by the period query
// parameter ("daily", "monthly") as well as "day" and "month".
// Empty input falls back to def.
func ParseGranularity(s string, def Granularity) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "day", "daily":
		return GranularityDay, nil
	case "month", "monthly":
		return GranularityMonth, nil
	}
	return "", invalidRange("unknown period %q", s)
}

// DefaultSpan is what an empty RangeRequest expands to.
type DefaultSpan int

const (
	DefaultToday DefaultSpan = iota
	DefaultCurrentMonth
)

// RangeRequest is the raw range input of an analytics call.
// Month wins over FromDate/ToDate, which win over the default span.
type RangeRequest struct {
	FromDate string `form:"fromDate" json:"fromDate"`
	ToDate   string `form:"toDate" json:"toDate"`
	Month    string `form:"month" json:"month"`
}

// Range is an inclusive span of civil dates. Start and End are midnight UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// DateBucket is one calendar day or one (clamped) calendar month.
type DateBucket struct {
	Key         string
	Label       string
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// ResolveRange applies month > fromDate/toDate > default precedence.
// now supplies "today" in the caller's location.
func ResolveRange(req RangeRequest, def DefaultSpan, now time.Time) (Range, error) {
	if m := strings.TrimSpace(req.Month); m != "" {
		first, err := ParseMonth(m)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: first, End: first.AddDate(0, 1, -1)}, nil
	}

	from := strings.TrimSpace(req.FromDate)
	to := strings.TrimSpace(req.ToDate)
	if from != "" || to != "" {
		if from == "" {
			from = to
		}
		if to == "" {
			to = from
		}
		start, err := ParseDate(from)
		if err != nil {
			return Range{}, err
		}
		end, err := ParseDate(to)
		if err != nil {
			return Range{}, err
		}
		if start.After(end) {
			return Range{}, invalidRange("fromDate %s is after toDate %s", from, to)
		}
		return Range{Start: start, End: end}, nil
	}

	today := CivilDate(now)
	if def == DefaultCurrentMonth {
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: first, End: first.AddDate(0, 1, -1)}, nil
	}
	return Range{Start: today, End: today}, nil
}

// BuildBuckets returns the gap-free bucket sequence covering r.
func BuildBuckets(r Range, g Granularity) ([]DateBucket, error) {
	if r.Start.IsZero() || r.End.IsZero() {
		return nil, invalidRange("range is not set")
	}
	start, end := CivilDate(r.Start), CivilDate(r.End)
	if start.After(end) {
		return nil, invalidRange("start %s is after end %s", start.Format(DayLayout), end.Format(DayLayout))
	}

	switch g {
	case GranularityDay:
		buckets := make([]DateBucket, 0, r.Days())
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			buckets = append(buckets, DateBucket{
				Key:         d.Format(DayLayout),
				Label:       d.Weekday().String(),
				Start:       d,
				End:         d,
				Granularity: GranularityDay,
			})
		}
		return buckets, nil
	case GranularityMonth:
		var buckets []DateBucket
		for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
			bStart, bEnd := m, m.AddDate(0, 1, -1)
			if bStart.Before(start) {
				bStart = start
			}
			if bEnd.After(end) {
				bEnd = end
			}
			buckets = append(buckets, DateBucket{
				Key:         m.Format(MonthLayout),
				Label:       m.Format("January 2006"),
				Start:       bStart,
				End:         bEnd,
				Granularity: GranularityMonth,
			})
		}
		return buckets, nil
	}
	return nil, invalidRange("unknown granularity %q", g)
}

// MonthLabel renders the month of the range start, e.g. "March 2025".
func MonthLabel(r Range) string {
	return r.Start.Format("January 2006")
}

// ParseMonth parses a strict YYYY-MM token into the first day of that month.
func ParseMonth(s string) (time.Time, error) {
	if len(s) != 7 || s[4] != '-' || !allDigits(s[:4]) || !allDigits(s[5:]) {
		return time.Time{}, invalidRange("month %q is not YYYY-MM", s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return time.Time{}, invalidRange("month %q is not YYYY-MM", s)
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil {
		return time.Time{}, invalidRange("month %q is not YYYY-MM", s)
	}
	if month < 1 || month > 12 {
		return time.Time{}, invalidRange("month %q out of range", s)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseDate parses YYYY-MM-DD, or an RFC3339 timestamp whose date part is used.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return CivilDate(t), nil
	}
	return time.Time{}, invalidRange("date %q is not YYYY-MM-DD", s)
}

// CivilDate drops the time of day, keeping the calendar date as seen in t's location.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey is the YYYY-MM-DD of t in loc. A nil loc keeps t's own location.
func DayKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DayLayout)
}

// DayBounds converts an inclusive civil-date range into the half-open instant range
// [from 00:00, to+1 00:00) in loc.
func DayBounds(from, to time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return start, end
}
