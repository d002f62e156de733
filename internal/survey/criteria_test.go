package survey

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestPageDefaultsAndValidation(t *testing.T) {
	f, err := QuestionnaireFilter{Page: FirstPage()}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if f.SortBy != "created_at" || f.SortOrder != SortDesc {
		t.Fatalf("defaults = %q %q, want created_at desc", f.SortBy, f.SortOrder)
	}
	if f.Offset() != 0 || f.Limit() != DefaultPerPage {
		t.Fatalf("offset/limit = %d/%d", f.Offset(), f.Limit())
	}

	bad := []Page{
		{Page: 0, PerPage: 10},
		{Page: 1, PerPage: 0},
		{Page: 1, PerPage: 101},
		{Page: 1, PerPage: 10, SortOrder: "sideways"},
	}
	for _, p := range bad {
		if _, err := (QuestionnaireFilter{Page: p}).Normalize(); !errors.Is(err, ErrValidation) {
			t.Fatalf("Normalize(%+v) = %v, want ErrValidation", p, err)
		}
	}
}

func TestValidationMessagesUseWireNames(t *testing.T) {
	_, err := ResponseFilter{Page: Page{Page: 1, PerPage: 500}}.Normalize()
	if err == nil || !strings.Contains(err.Error(), "per_page must be at most 100") {
		t.Fatalf("err = %v, want per_page message", err)
	}
}

func TestUnknownSortFails(t *testing.T) {
	p := FirstPage()
	p.SortBy = "popularity"
	if _, err := (AssignmentFilter{Page: p}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	p.SortBy = "response_count"
	f, err := AssignmentFilter{Page: p}.Normalize()
	if err != nil || f.SortBy != "response_count" {
		t.Fatalf("Normalize(response_count) = %+v, %v", f.Page, err)
	}
}

func TestRangeAndBoundsValidation(t *testing.T) {
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	if _, err := (ResponseFilter{Page: FirstPage(), SubmittedFrom: &from, SubmittedTo: &to}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted range err = %v", err)
	}
	lo, hi := int64(5), int64(1)
	f := AssignmentFilter{Page: FirstPage()}
	f.ResponseCountMin, f.ResponseCountMax = &lo, &hi
	if _, err := f.Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted bounds err = %v", err)
	}
	rate := 120.0
	f = AssignmentFilter{Page: FirstPage()}
	f.CompletionRateMin = &rate
	if _, err := f.Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("rate > 100 err = %v", err)
	}
	if _, err := (AssignmentFilter{Page: FirstPage(), Statuses: []AssignmentStatus{"late"}}).Normalize(); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status err = %v", err)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Math", "physics", "math", "", "Physics "})
	want := []string{"math", "physics"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNewPageResult(t *testing.T) {
	cases := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{250, 100, 3},
	}
	for _, c := range cases {
		r := NewPageResult[int](nil, c.total, Page{Page: 1, PerPage: c.perPage})
		if r.TotalPages != c.want {
			t.Fatalf("TotalPages(total=%d, per=%d) = %d, want %d", c.total, c.perPage, r.TotalPages, c.want)
		}
		if r.Items == nil {
			t.Fatalf("Items is nil, want empty slice")
		}
	}
}
