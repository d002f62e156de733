package sqlstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/db"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type clock struct{ at time.Time }

func (c *clock) now() time.Time { return c.at }

func newStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	d, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	c := &clock{at: t0}
	return New(d, WithClock(c.now)), c
}

// fixture seeds a mentor (1), a student (42), an active group (-100) and
// returns a questionnaire owned by the mentor.
func fixture(t *testing.T, s *Store) survey.Questionnaire {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, survey.User{ID: 1, Username: "mentor", FullName: "Mia Mentor", Role: survey.RoleMentor, Active: true}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := s.EnsureUser(ctx, 42, "stud", "Sam Student"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if _, err := s.UpsertGroup(ctx, survey.Group{ID: -100, Title: "Cohort A", IsActive: true}); err != nil {
		t.Fatalf("UpsertGroup: %v", err)
	}
	return mustQuestionnaire(t, s, "Weekly check-in", "weekly", "feedback")
}

func mustQuestionnaire(t *testing.T, s *Store, title string, tags ...string) survey.Questionnaire {
	t.Helper()
	q, err := s.CreateQuestionnaire(context.Background(), survey.Questionnaire{
		Title:     title,
		Questions: []survey.Question{{Text: "Pick one", Type: survey.QuestionSingleChoice, Options: []string{"A", "B"}}},
		Status:    survey.QuestionnaireActive,
		Tags:      tags,
		CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("CreateQuestionnaire(%q): %v", title, err)
	}
	return q
}

func mustAssignment(t *testing.T, s *Store, qid int64, start, deadline time.Time) survey.Assignment {
	t.Helper()
	a, err := s.CreateAssignment(context.Background(), survey.Assignment{
		QuestionnaireID: qid, GroupID: -100, StartAt: start, DeadlineAt: deadline, CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	return a
}

func mustSubmit(t *testing.T, s *Store, aid, sid int64, value string, completed bool, at time.Time) survey.Response {
	t.Helper()
	r, err := s.UpsertResponse(context.Background(), survey.Response{
		AssignmentID: aid,
		StudentID:    &sid,
		Answers:      map[string]survey.Answer{"0": {Question: "Pick one", Value: value}},
		IsCompleted:  completed,
		SubmittedAt:  at,
	})
	if err != nil {
		t.Fatalf("UpsertResponse: %v", err)
	}
	return r
}

func TestUpsertResponseReplacesInPlace(t *testing.T) {
	s, c := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	a := mustAssignment(t, s, q.ID, t0, t0.Add(7*24*time.Hour))

	first := mustSubmit(t, s, a.ID, 42, "A", true, t0.Add(time.Hour))
	c.at = t0.Add(2 * time.Hour)
	second := mustSubmit(t, s, a.ID, 42, "B", false, t0.Add(2*time.Hour))

	if first.ID != second.ID {
		t.Fatalf("resubmission created a new row: %d vs %d", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %s -> %s", first.CreatedAt, second.CreatedAt)
	}
	if second.IsCompleted {
		t.Fatalf("is_completed not replaced")
	}

	items, total, err := s.FilterResponses(ctx, survey.ResponseFilter{AssignmentID: &a.ID, Page: survey.Page{Page: 1, PerPage: 10, SortBy: "submitted_at", SortOrder: survey.SortDesc}})
	if err != nil {
		t.Fatalf("FilterResponses: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(items))
	}
	if got := items[0].Answers["0"].Value; got != "B" {
		t.Fatalf("answer = %v, want B", got)
	}
	if items[0].Student == nil || items[0].Student.FullName != "Sam Student" {
		t.Fatalf("student ref = %+v", items[0].Student)
	}
}

func TestCreateAssignmentInactiveGroupPersistsNothing(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	if err := s.SetGroupActive(ctx, -100, false); err != nil {
		t.Fatalf("SetGroupActive: %v", err)
	}

	_, err := s.CreateAssignment(ctx, survey.Assignment{QuestionnaireID: q.ID, GroupID: -100, StartAt: t0, DeadlineAt: t0.Add(time.Hour), CreatedBy: 1})
	if !errors.Is(err, survey.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	_, total, err := s.FilterAssignments(ctx, survey.AssignmentFilter{Page: survey.Page{Page: 1, PerPage: 10, SortBy: "deadline_time"}, Now: t0})
	if err != nil {
		t.Fatalf("FilterAssignments: %v", err)
	}
	if total != 0 {
		t.Fatalf("assignments persisted: %d", total)
	}

	_, err = s.CreateAssignment(ctx, survey.Assignment{QuestionnaireID: q.ID, GroupID: -999, StartAt: t0, DeadlineAt: t0.Add(time.Hour), CreatedBy: 1})
	if !errors.Is(err, survey.ErrNotFound) {
		t.Fatalf("unknown group err = %v, want ErrNotFound", err)
	}
}

func TestCreateAssignmentDefaultsNameToTitle(t *testing.T) {
	s, _ := newStore(t)
	q := fixture(t, s)
	a := mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))
	if a.Name != "Weekly check-in" {
		t.Fatalf("name = %q", a.Name)
	}
}

func TestFilterAssignmentsStatusesAndAggregates(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	now := t0.Add(10 * 24 * time.Hour)

	done := mustAssignment(t, s, q.ID, t0, t0.Add(24*time.Hour))
	open := mustAssignment(t, s, q.ID, t0, now.Add(24*time.Hour))
	_ = mustAssignment(t, s, q.ID, now.Add(time.Hour), now.Add(48*time.Hour))

	mustSubmit(t, s, done.ID, 42, "A", true, t0.Add(time.Hour))

	page := survey.Page{Page: 1, PerPage: 10, SortBy: "deadline_time", SortOrder: survey.SortAsc}
	items, total, err := s.FilterAssignments(ctx, survey.AssignmentFilter{
		Statuses: []survey.AssignmentStatus{survey.StatusActive, survey.StatusCompleted},
		Page:     page,
		Now:      now,
	})
	if err != nil {
		t.Fatalf("FilterAssignments: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("total=%d len=%d, want 2", total, len(items))
	}
	if items[0].ID != done.ID || items[0].Status != survey.StatusCompleted {
		t.Fatalf("items[0] = %+v", items[0])
	}
	if items[0].ResponseCount != 1 || items[0].CompletionRate != 100 {
		t.Fatalf("aggregates[0] = %d / %v", items[0].ResponseCount, items[0].CompletionRate)
	}
	if items[1].ID != open.ID || items[1].ResponseCount != 0 || items[1].CompletionRate != 0 {
		t.Fatalf("zero-response assignment = %+v", items[1])
	}

	one := int64(1)
	_, total, err = s.FilterAssignments(ctx, survey.AssignmentFilter{
		AggregateBounds: survey.AggregateBounds{ResponseCountMin: &one},
		Page:            page,
		Now:             now,
	})
	if err != nil || total != 1 {
		t.Fatalf("response_count_min: total=%d err=%v", total, err)
	}

	active, err := s.ActiveAssignments(ctx, now)
	if err != nil || len(active) != 1 || active[0].ID != open.ID {
		t.Fatalf("ActiveAssignments = %v, %v", active, err)
	}
}

func TestFilterQuestionnairesTotalIsUnpaginated(t *testing.T) {
	s, c := newStore(t)
	ctx := context.Background()
	fixture(t, s)
	for i := 0; i < 4; i++ {
		c.at = c.at.Add(time.Minute)
		mustQuestionnaire(t, s, "Extra survey", "weekly")
	}

	page := survey.Page{Page: 2, PerPage: 2, SortBy: "created_at", SortOrder: survey.SortDesc}
	items, total, err := s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Page: page})
	if err != nil {
		t.Fatalf("FilterQuestionnaires: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
}

func TestFilterQuestionnairesTagsAreConjunctive(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	both := fixture(t, s)
	mustQuestionnaire(t, s, "Only weekly", "weekly")

	page := survey.Page{Page: 1, PerPage: 10, SortBy: "created_at"}
	items, total, err := s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Tags: []string{"feedback", "weekly"}, Page: page})
	if err != nil {
		t.Fatalf("FilterQuestionnaires: %v", err)
	}
	if total != 1 || items[0].ID != both.ID {
		t.Fatalf("tags AND: total=%d items=%v", total, items)
	}
	if strings.Join(items[0].Tags, ",") != "feedback,weekly" {
		t.Fatalf("tags = %v", items[0].Tags)
	}

	_, total, err = s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Tags: []string{"weekly"}, Page: page})
	if err != nil || total != 2 {
		t.Fatalf("single tag: total=%d err=%v", total, err)
	}
}

func TestFilterQuestionnairesSearchEscapesWildcards(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fixture(t, s)
	pct := mustQuestionnaire(t, s, "100% Satisfaction")

	page := survey.Page{Page: 1, PerPage: 10, SortBy: "title", SortOrder: survey.SortAsc}
	items, total, err := s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Search: "%", Page: page})
	if err != nil {
		t.Fatalf("FilterQuestionnaires: %v", err)
	}
	if total != 1 || items[0].ID != pct.ID {
		t.Fatalf("search %%: total=%d items=%v", total, items)
	}
	_, total, err = s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Search: "WEEKLY", Page: page})
	if err != nil || total != 1 {
		t.Fatalf("case-insensitive search: total=%d err=%v", total, err)
	}
}

func TestSearchFoldsNonASCII(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fixture(t, s)
	uk := mustQuestionnaire(t, s, "Опитування студентів")

	page := survey.Page{Page: 1, PerPage: 10, SortBy: "title", SortOrder: survey.SortAsc}
	for _, needle := range []string{"Опитування", "опитування", "СТУДЕНТІВ"} {
		items, total, err := s.FilterQuestionnaires(ctx, survey.QuestionnaireFilter{Search: needle, Page: page})
		if err != nil {
			t.Fatalf("FilterQuestionnaires(%q): %v", needle, err)
		}
		if total != 1 || items[0].ID != uk.ID {
			t.Fatalf("title search %q: total=%d items=%v", needle, total, items)
		}
	}

	a, err := s.CreateAssignment(ctx, survey.Assignment{
		QuestionnaireID: uk.ID, GroupID: -100, Name: "Тиждень ПЕРШИЙ", StartAt: t0, DeadlineAt: t0.Add(time.Hour), CreatedBy: 1,
	})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	items, total, err := s.FilterAssignments(ctx, survey.AssignmentFilter{Search: "перший", Page: survey.Page{Page: 1, PerPage: 10, SortBy: "deadline_time"}, Now: t0})
	if err != nil || total != 1 || items[0].ID != a.ID {
		t.Fatalf("name search: total=%d items=%v err=%v", total, items, err)
	}

	mustSubmit(t, s, a.ID, 42, "Дуже Добре", true, t0)
	rpage := survey.Page{Page: 1, PerPage: 10, SortBy: "submitted_at", SortOrder: survey.SortDesc}
	_, total, err = s.FilterResponses(ctx, survey.ResponseFilter{AnswerContains: "дуже добре", Page: rpage})
	if err != nil || total != 1 {
		t.Fatalf("answer search: total=%d err=%v", total, err)
	}
}

func TestAnswerContainsMatchesHTMLCharacters(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	a := mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))
	r := mustSubmit(t, s, a.ID, 42, "R&D <team>", true, t0)
	if got := r.Answers["0"].Value; got != "R&D <team>" {
		t.Fatalf("stored answer = %v", got)
	}

	page := survey.Page{Page: 1, PerPage: 10, SortBy: "submitted_at", SortOrder: survey.SortDesc}
	for _, needle := range []string{"r&d", "<team>", "team"} {
		_, total, err := s.FilterResponses(ctx, survey.ResponseFilter{AnswerContains: needle, Page: page})
		if err != nil || total != 1 {
			t.Fatalf("answer_contains %q: total=%d err=%v", needle, total, err)
		}
	}
}

func TestDeleteQuestionnaireReferencedConflicts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))

	if err := s.DeleteQuestionnaire(ctx, q.ID); !errors.Is(err, survey.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if err := s.DeleteQuestionnaire(ctx, 999); !errors.Is(err, survey.ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
}

func TestResponseTotalsAndPoints(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	a := mustAssignment(t, s, q.ID, t0, t0.Add(7*24*time.Hour))
	if _, err := s.EnsureUser(ctx, 43, "", "Other"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	mustSubmit(t, s, a.ID, 42, "A", true, t0.Add(time.Hour))
	mustSubmit(t, s, a.ID, 43, "B", false, t0.Add(26*time.Hour))

	total, completed, err := s.ResponseTotals(ctx, survey.StatsScope{QuestionnaireID: &q.ID}, nil, nil)
	if err != nil || total != 2 || completed != 1 {
		t.Fatalf("totals = %d/%d, %v", total, completed, err)
	}

	from := t0.Add(24 * time.Hour)
	pts, err := s.ResponsePoints(ctx, survey.StatsScope{AssignmentID: &a.ID}, &from, nil)
	if err != nil || len(pts) != 1 || pts[0].IsCompleted {
		t.Fatalf("points = %v, %v", pts, err)
	}

	other := int64(12345)
	total, _, err = s.ResponseTotals(ctx, survey.StatsScope{GroupID: &other}, nil, nil)
	if err != nil || total != 0 {
		t.Fatalf("empty scope totals = %d, %v", total, err)
	}
}

func TestProgressRowsIncludeUnanswered(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	a1 := mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))
	a2 := mustAssignment(t, s, q.ID, t0, t0.Add(2*time.Hour))
	mustSubmit(t, s, a1.ID, 42, "A", true, t0.Add(time.Minute))

	rows, err := s.ProgressRows(ctx, 42, survey.ProgressQuery{QuestionnaireID: &q.ID})
	if err != nil {
		t.Fatalf("ProgressRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if !rows[0].Responded || !rows[0].IsCompleted || rows[1].Responded || rows[1].AssignmentID != a2.ID {
		t.Fatalf("rows = %+v", rows)
	}

	rows, err = s.ProgressRows(ctx, 42, survey.ProgressQuery{AssignmentIDs: []int64{a2.ID}})
	if err != nil || len(rows) != 1 || rows[0].Responded {
		t.Fatalf("intersected rows = %+v, %v", rows, err)
	}
}

func TestDueForCloseAndMark(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	a := mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))
	now := t0.Add(2 * time.Hour)

	due, err := s.DueForClose(ctx, now, 10)
	if err != nil || len(due) != 1 || due[0].ID != a.ID {
		t.Fatalf("DueForClose = %v, %v", due, err)
	}
	if err := s.MarkCloseNotified(ctx, a.ID, now); err != nil {
		t.Fatalf("MarkCloseNotified: %v", err)
	}
	due, err = s.DueForClose(ctx, now, 10)
	if err != nil || len(due) != 0 {
		t.Fatalf("DueForClose after mark = %v, %v", due, err)
	}
}

func TestDueForCloseRotatesFailedAttempts(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	q := fixture(t, s)
	first := mustAssignment(t, s, q.ID, t0, t0.Add(time.Hour))
	second := mustAssignment(t, s, q.ID, t0, t0.Add(2*time.Hour))
	now := t0.Add(3 * time.Hour)

	due, err := s.DueForClose(ctx, now, 1)
	if err != nil || len(due) != 1 || due[0].ID != first.ID {
		t.Fatalf("DueForClose = %v, %v", due, err)
	}
	if err := s.MarkCloseAttempted(ctx, first.ID, now); err != nil {
		t.Fatalf("MarkCloseAttempted: %v", err)
	}
	due, err = s.DueForClose(ctx, now, 1)
	if err != nil || len(due) != 1 || due[0].ID != second.ID {
		t.Fatalf("after failed attempt DueForClose = %v, %v", due, err)
	}
	if err := s.MarkCloseAttempted(ctx, second.ID, now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkCloseAttempted: %v", err)
	}
	due, err = s.DueForClose(ctx, now, 1)
	if err != nil || len(due) != 1 || due[0].ID != first.ID {
		t.Fatalf("oldest attempt should come back first: %v, %v", due, err)
	}
	if err := s.MarkCloseAttempted(ctx, 999, now); !errors.Is(err, survey.ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
}

func TestUsers(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	u, err := s.UpsertUser(ctx, survey.User{ID: 7, Username: "ann", FullName: "Ann", Role: survey.RoleAdmin, Active: true, PasswordHash: "h1"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	u.PasswordHash = ""
	u.FullName = "Ann B"
	if _, err := s.UpsertUser(ctx, u); err != nil {
		t.Fatalf("UpsertUser again: %v", err)
	}
	got, err := s.GetUserByUsername(ctx, "ann")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.PasswordHash != "h1" || got.FullName != "Ann B" {
		t.Fatalf("user = %+v", got)
	}

	if _, err := s.UpsertUser(ctx, survey.User{ID: 8, Username: "ann", Role: survey.RoleStudent}); !errors.Is(err, survey.ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}
	if _, err := s.GetUser(ctx, 404); !errors.Is(err, survey.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}

	ensured, err := s.EnsureUser(ctx, 7, "", "")
	if err != nil || ensured.Role != survey.RoleAdmin || ensured.FullName != "Ann B" {
		t.Fatalf("EnsureUser on existing = %+v, %v", ensured, err)
	}
}
