package survey

import (
	"sort"
	"time"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// DefaultLookback is the bucket window used when a period is requested without dates.
const DefaultLookback = 30 * 24 * time.Hour

func (p Period) Valid() bool {
	switch p {
	case "", PeriodDay, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

// Truncate returns the UTC start of the bucket containing t. Weeks start on Monday.
func (p Period) Truncate(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// StatsScope narrows statistics; all set fields apply together.
type StatsScope struct {
	AssignmentID    *int64 `json:"assignment_id,omitempty"`
	QuestionnaireID *int64 `json:"questionnaire_id,omitempty"`
	GroupID         *int64 `json:"group_id,omitempty"`
}

type StatsQuery struct {
	StatsScope
	Period Period
	From   *time.Time
	To     *time.Time
}

func (q StatsQuery) Validate() error {
	if !q.Period.Valid() {
		return Validationf("time_period must be one of day, week, month")
	}
	return checkRange("from", q.From, q.To)
}

type Bucket struct {
	Start          time.Time `json:"period_start"`
	Label          string    `json:"period"`
	Total          int64     `json:"total_responses"`
	Completed      int64     `json:"completed_responses"`
	CompletionRate float64   `json:"completion_rate"`
}

type Stats struct {
	Total          int64    `json:"total_responses"`
	Completed      int64    `json:"completed_responses"`
	CompletionRate float64  `json:"completion_rate"`
	Buckets        []Bucket `json:"time_based_stats,omitempty"`
}

// ResponsePoint is the minimal projection of a response needed for bucketing.
type ResponsePoint struct {
	SubmittedAt time.Time
	IsCompleted bool
}

// CompletionRate is completed/total*100, or 0 when total is 0.
func CompletionRate(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

// BucketPoints groups points by period, ascending by bucket start.
func BucketPoints(points []ResponsePoint, p Period) []Bucket {
	byStart := map[time.Time]*Bucket{}
	for _, pt := range points {
		start := p.Truncate(pt.SubmittedAt)
		b := byStart[start]
		if b == nil {
			b = &Bucket{Start: start, Label: start.Format("2006-01-02")}
			byStart[start] = b
		}
		b.Total++
		if pt.IsCompleted {
			b.Completed++
		}
	}
	out := make([]Bucket, 0, len(byStart))
	for _, b := range byStart {
		b.CompletionRate = CompletionRate(b.Completed, b.Total)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

type ProgressQuery struct {
	AssignmentIDs   []int64
	QuestionnaireID *int64
	GroupID         *int64
}

type AssignmentProgress struct {
	IsCompleted bool      `json:"is_completed"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Progress reports one student's completion over a set of assignments.
// Assignments without a response are absent from Assignments.
type Progress struct {
	StudentID            *int64                        `json:"student_id"`
	TotalAssignments     int64                         `json:"total_assignments"`
	CompletedAssignments int64                         `json:"completed_assignments"`
	CompletionRate       float64                       `json:"completion_rate"`
	Assignments          map[string]AssignmentProgress `json:"assignments"`
}

// ProgressRow is one assignment in the progress universe with the student's response, if any.
type ProgressRow struct {
	AssignmentID int64
	Responded    bool
	IsCompleted  bool
	SubmittedAt  time.Time
}

func BuildProgress(studentID int64, rows []ProgressRow) Progress {
	p := Progress{StudentID: &studentID, Assignments: map[string]AssignmentProgress{}}
	for _, r := range rows {
		p.TotalAssignments++
		if !r.Responded {
			continue
		}
		if r.IsCompleted {
			p.CompletedAssignments++
		}
		p.Assignments[formatID(r.AssignmentID)] = AssignmentProgress{IsCompleted: r.IsCompleted, SubmittedAt: r.SubmittedAt}
	}
	p.CompletionRate = CompletionRate(p.CompletedAssignments, p.TotalAssignments)
	return p
}
