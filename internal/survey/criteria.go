package survey

import (
	"sort"
	"strings"
	"time"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Page holds pagination and ordering. Out-of-range values are rejected, never clamped.
type Page struct {
	Page      int       `json:"page" validate:"min=1"`
	PerPage   int       `json:"per_page" validate:"min=1,max=100"`
	SortBy    string    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order" validate:"omitempty,oneof=asc desc"`
}

// FirstPage is the default page for callers that supply no pagination.
func FirstPage() Page { return Page{Page: 1, PerPage: DefaultPerPage} }

func (p Page) Offset() int { return (p.Page - 1) * p.PerPage }
func (p Page) Limit() int  { return p.PerPage }

// SortSpec is the allow-list of sort keys for one entity family.
type SortSpec struct {
	Default string
	Keys    []string
}

var (
	QuestionnaireSorts = SortSpec{Default: "created_at", Keys: []string{"created_at", "updated_at", "title", "status", "response_count", "completion_rate"}}
	AssignmentSorts    = SortSpec{Default: "deadline_time", Keys: []string{"deadline_time", "start_time", "name", "created_at", "response_count", "completion_rate"}}
	ResponseSorts      = SortSpec{Default: "submitted_at", Keys: []string{"submitted_at", "created_at", "updated_at"}}
)

// resolve validates p against the allow-list and fills SortBy/SortOrder defaults.
func (s SortSpec) resolve(p Page) (Page, error) {
	if err := ValidateStruct(p); err != nil {
		return p, err
	}
	if p.SortBy == "" {
		p.SortBy = s.Default
	} else if !contains(s.Keys, p.SortBy) {
		return p, Validationf("unknown sort_by %q (allowed: %s)", p.SortBy, strings.Join(s.Keys, ", "))
	}
	if p.SortOrder == "" {
		p.SortOrder = SortDesc
	}
	return p, nil
}

// PageResult is one page of a filtered collection plus the size of the whole match set.
type PageResult[T any] struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	Items      []T   `json:"items"`
}

func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.PerPage > 0 {
		pages = int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	}
	return PageResult[T]{Total: total, Page: p.Page, PerPage: p.PerPage, TotalPages: pages, Items: items}
}

// Metrics bounds on the per-entity response aggregates.
type AggregateBounds struct {
	ResponseCountMin  *int64   `json:"response_count_min" validate:"omitempty,min=0"`
	ResponseCountMax  *int64   `json:"response_count_max" validate:"omitempty,min=0"`
	CompletionRateMin *float64 `json:"completion_rate_min" validate:"omitempty,min=0,max=100"`
	CompletionRateMax *float64 `json:"completion_rate_max" validate:"omitempty,min=0,max=100"`
}

func (b AggregateBounds) validate() error {
	if err := ValidateStruct(b); err != nil {
		return err
	}
	if b.ResponseCountMin != nil && b.ResponseCountMax != nil && *b.ResponseCountMin > *b.ResponseCountMax {
		return Validationf("response_count_min exceeds response_count_max")
	}
	if b.CompletionRateMin != nil && b.CompletionRateMax != nil && *b.CompletionRateMin > *b.CompletionRateMax {
		return Validationf("completion_rate_min exceeds completion_rate_max")
	}
	return nil
}

type QuestionnaireFilter struct {
	CreatorID   *int64
	Statuses    []QuestionnaireStatus
	Search      string // title, case-insensitive substring
	Tags        []string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	AggregateBounds
	Page
}

// Normalize validates the filter and returns it with defaults and canonical tags.
func (f QuestionnaireFilter) Normalize() (QuestionnaireFilter, error) {
	p, err := QuestionnaireSorts.resolve(f.Page)
	if err != nil {
		return f, err
	}
	f.Page = p
	for _, s := range f.Statuses {
		if !s.Valid() {
			return f, Validationf("unknown questionnaire status %q", s)
		}
	}
	if err := checkRange("created", f.CreatedFrom, f.CreatedTo); err != nil {
		return f, err
	}
	if err := f.AggregateBounds.validate(); err != nil {
		return f, err
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Tags = NormalizeTags(f.Tags)
	return f, nil
}

type AssignmentFilter struct {
	Statuses        []AssignmentStatus // OR-combined
	QuestionnaireID *int64
	GroupID         *int64
	CreatorID       *int64
	StartFrom       *time.Time
	StartTo         *time.Time
	DeadlineFrom    *time.Time
	DeadlineTo      *time.Time
	Search          string // name
	AggregateBounds
	Page

	// reference instant for status predicates, set by the service
	Now time.Time
}

func (f AssignmentFilter) Normalize() (AssignmentFilter, error) {
	p, err := AssignmentSorts.resolve(f.Page)
	if err != nil {
		return f, err
	}
	f.Page = p
	for _, s := range f.Statuses {
		if !s.Valid() {
			return f, Validationf("unknown assignment status %q", s)
		}
	}
	if err := checkRange("start", f.StartFrom, f.StartTo); err != nil {
		return f, err
	}
	if err := checkRange("deadline", f.DeadlineFrom, f.DeadlineTo); err != nil {
		return f, err
	}
	if err := f.AggregateBounds.validate(); err != nil {
		return f, err
	}
	f.Search = strings.TrimSpace(f.Search)
	return f, nil
}

type ResponseFilter struct {
	AssignmentID    *int64
	QuestionnaireID *int64
	GroupID         *int64
	StudentID       *int64
	IsCompleted     *bool
	SubmittedFrom   *time.Time
	SubmittedTo     *time.Time
	AnswerContains  string
	Page
}

func (f ResponseFilter) Normalize() (ResponseFilter, error) {
	p, err := ResponseSorts.resolve(f.Page)
	if err != nil {
		return f, err
	}
	f.Page = p
	if err := checkRange("submitted", f.SubmittedFrom, f.SubmittedTo); err != nil {
		return f, err
	}
	f.AnswerContains = strings.TrimSpace(f.AnswerContains)
	return f, nil
}

// NormalizeTags lowercases, trims, drops empties and dedupes; result is sorted.
func NormalizeTags(tags []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func checkRange(name string, from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return Validationf("%s_from is after %s_to", name, name)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
