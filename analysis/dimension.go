package analysis

import "strings"

type ActivityKind string

const (
	KindCall               ActivityKind = "call"
	KindJdSent             ActivityKind = "jdSent"
	KindResumeReceived     ActivityKind = "resumeReceived"
	KindInterviewConducted ActivityKind = "interviewConducted"
)

type DimensionKey string

const (
	DimCalls      DimensionKey = "calls"
	DimJds        DimensionKey = "jds"
	DimResumes    DimensionKey = "resumes"
	DimInterviews DimensionKey = "interviews"
)

// Category is one member of a dimension's closed outcome set.
// Outcome is the normalized (trimmed, lower-case) stored value, Key the JSON name.
type Category struct {
	Outcome string
	Key     string
}

type Dimension struct {
	Key  DimensionKey
	Kind ActivityKind
	// Name is the capitalized form used in JSON field names (plannedCalls, achievedCalls).
	Name       string
	Categories []Category
	// EmptyOutcome is the category an empty outcome falls into; blank means excluded.
	EmptyOutcome string
	Planned      func(TargetRecord) int
}

func (d Dimension) Categorized() bool {
	return len(d.Categories) > 0
}

var (
	CallCategories = []Category{
		{Outcome: "connected", Key: "connected"},
		{Outcome: "not answered", Key: "notAnswered"},
		{Outcome: "busy", Key: "busy"},
		{Outcome: "switch off", Key: "switchOff"},
		{Outcome: "invalid", Key: "invalid"},
	}
	FollowUpCategories = []Category{
		{Outcome: "resumes received", Key: "resumes_received"},
		{Outcome: "sending in 1-2 days", Key: "sending_in_1-2_days"},
		{Outcome: "delayed", Key: "delayed"},
		{Outcome: "no response", Key: "no_response"},
		{Outcome: "unprofessional", Key: "unprofessional"},
	}
	InterviewCategories = []Category{
		{Outcome: "selected", Key: "selected"},
		{Outcome: "rejected", Key: "rejected"},
		{Outcome: "on-hold", Key: "on-hold"},
		{Outcome: "not-answered", Key: "not-answered"},
		{Outcome: "not-interested", Key: "not-interested"},
	}
)

var dimensions = map[DimensionKey]Dimension{
	DimCalls: {
		Key: DimCalls, Kind: KindCall, Name: "Calls",
		Categories: CallCategories,
		Planned:    func(t TargetRecord) int { return t.PlannedCalls },
	},
	DimJds: {
		Key: DimJds, Kind: KindJdSent, Name: "Jds",
		Planned: func(t TargetRecord) int { return t.PlannedJds },
	},
	DimResumes: {
		Key: DimResumes, Kind: KindResumeReceived, Name: "Resumes",
		Categories: FollowUpCategories,
		Planned:    func(t TargetRecord) int { return t.PlannedResumes },
	},
	DimInterviews: {
		Key: DimInterviews, Kind: KindInterviewConducted, Name: "Interviews",
		Categories:   InterviewCategories,
		EmptyOutcome: "not-answered",
		Planned:      func(t TargetRecord) int { return t.PlannedInterviews },
	},
}

// AllDimensions lists the dimension keys in display order.
var AllDimensions = []DimensionKey{DimCalls, DimJds, DimResumes, DimInterviews}

func LookupDimension(key DimensionKey) (Dimension, error) {
	d, ok := dimensions[key]
	if !ok {
		return Dimension{}, &InvalidDimensionError{Key: string(key)}
	}
	return d, nil
}

func lookupDimensions(keys []DimensionKey) ([]Dimension, error) {
	out := make([]Dimension, 0, len(keys))
	seen := make(map[DimensionKey]bool, len(keys))
	for _, k := range keys {
		d, err := LookupDimension(k)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out, nil
}

// ParseDimensions parses a comma separated list such as "calls,jds".
func ParseDimensions(s string) ([]DimensionKey, error) {
	var keys []DimensionKey
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		k := DimensionKey(part)
		if _, err := LookupDimension(k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, &InvalidDimensionError{Key: s}
	}
	return keys, nil
}

// NormalizeOutcome trims and lower-cases a free-text outcome.
func NormalizeOutcome(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ClassifyOutcome maps raw to the dimension's category key.
// ok is false when raw is outside the closed set (or the dimension has none).
func ClassifyOutcome(d Dimension, raw string) (key string, ok bool) {
	n := NormalizeOutcome(raw)
	if n == "" {
		n = d.EmptyOutcome
	}
	if n == "" {
		return "", false
	}
	for _, c := range d.Categories {
		if c.Outcome == n {
			return c.Key, true
		}
	}
	return "", false
}
