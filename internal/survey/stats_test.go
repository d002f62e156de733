package survey

import (
	"testing"
	"time"
)

func TestCompletionRate(t *testing.T) {
	if got := CompletionRate(0, 0); got != 0 {
		t.Fatalf("CompletionRate(0,0) = %v, want 0", got)
	}
	if got := CompletionRate(1, 4); got != 25 {
		t.Fatalf("CompletionRate(1,4) = %v, want 25", got)
	}
	if got := CompletionRate(3, 3); got != 100 {
		t.Fatalf("CompletionRate(3,3) = %v, want 100", got)
	}
}

func TestPeriodTruncate(t *testing.T) {
	ts := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC) // Wednesday
	cases := []struct {
		p    Period
		want time.Time
	}{
		{PeriodDay, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{PeriodWeek, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{PeriodMonth, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := c.p.Truncate(ts); !got.Equal(c.want) {
			t.Fatalf("%s.Truncate = %s, want %s", c.p, got, c.want)
		}
	}
	sunday := time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC)
	if got := PeriodWeek.Truncate(sunday); !got.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week of Sunday = %s, want Monday 2024-01-08", got)
	}
}

func TestBucketPointsAscending(t *testing.T) {
	pts := []ResponsePoint{
		{SubmittedAt: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), IsCompleted: true},
		{SubmittedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), IsCompleted: false},
		{SubmittedAt: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), IsCompleted: true},
	}
	got := BucketPoints(pts, PeriodDay)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Label != "2024-01-01" || got[1].Label != "2024-01-03" {
		t.Fatalf("labels = %q, %q", got[0].Label, got[1].Label)
	}
	if got[0].Total != 2 || got[0].Completed != 1 || got[0].CompletionRate != 50 {
		t.Fatalf("bucket[0] = %+v", got[0])
	}
	if got[1].CompletionRate != 100 {
		t.Fatalf("bucket[1] = %+v", got[1])
	}
}

func TestBuildProgressOmitsUnanswered(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p := BuildProgress(42, []ProgressRow{
		{AssignmentID: 1, Responded: true, IsCompleted: true, SubmittedAt: at},
		{AssignmentID: 2, Responded: true, IsCompleted: false, SubmittedAt: at},
		{AssignmentID: 3},
		{AssignmentID: 4},
	})
	if p.TotalAssignments != 4 || p.CompletedAssignments != 1 || p.CompletionRate != 25 {
		t.Fatalf("progress = %+v", p)
	}
	if len(p.Assignments) != 2 {
		t.Fatalf("assignments map = %v, want 2 entries", p.Assignments)
	}
	if _, ok := p.Assignments["3"]; ok {
		t.Fatalf("unanswered assignment present in map")
	}
	if p.StudentID == nil || *p.StudentID != 42 {
		t.Fatalf("StudentID = %v", p.StudentID)
	}

	empty := BuildProgress(7, nil)
	if empty.CompletionRate != 0 || empty.TotalAssignments != 0 {
		t.Fatalf("empty progress = %+v", empty)
	}
}

func TestStatsQueryValidate(t *testing.T) {
	if err := (StatsQuery{Period: "hour"}).Validate(); err == nil {
		t.Fatalf("Validate(hour) = nil, want error")
	}
	if err := (StatsQuery{Period: PeriodWeek}).Validate(); err != nil {
		t.Fatalf("Validate(week) = %v", err)
	}
}
