package service

import (
	"context"
	"strconv"

	"github.com/mind-engage/mindengage-survey/internal/metrics"
	"github.com/mind-engage/mindengage-survey/internal/policy"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type SubmitInput struct {
	AssignmentID int64                    `json:"assignment_id" validate:"required"`
	StudentID    *int64                   `json:"student_id"` // defaults to the caller
	Answers      map[string]survey.Answer `json:"answers"`
	IsCompleted  bool                     `json:"is_completed"`

	// Student carries the profile relayed by the messaging side; staff only.
	Student *StudentProfile `json:"student,omitempty"`
}

type StudentProfile struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// ResponseUpdate replaces answers and/or the completion flag of an existing response.
type ResponseUpdate struct {
	Answers     map[string]survey.Answer `json:"answers"`
	IsCompleted *bool                    `json:"is_completed"`
}

// Submit records the student's answers for an open assignment. A repeated
// submission replaces the earlier one in place.
func (s *Service) Submit(ctx context.Context, a survey.Actor, in SubmitInput) (survey.Response, error) {
	if err := survey.ValidateStruct(in); err != nil {
		return survey.Response{}, err
	}
	studentID := a.ID
	if in.StudentID != nil {
		studentID = *in.StudentID
	}
	if !policy.CanSubmitFor(a, studentID) {
		return survey.Response{}, survey.PermissionDeniedf("cannot submit for student %d", studentID)
	}

	as, err := s.store.GetAssignment(ctx, in.AssignmentID)
	if err != nil {
		return survey.Response{}, err
	}
	now := s.now()
	if now.Before(as.StartAt) {
		return survey.Response{}, survey.Conflictf("assignment %d is not open yet", as.ID)
	}
	if !now.Before(as.DeadlineAt) {
		return survey.Response{}, survey.Conflictf("assignment %d deadline has passed", as.ID)
	}
	if in.Student != nil && !a.IsStudent() {
		_, err = s.RegisterContact(ctx, studentID, in.Student.Username, in.Student.FullName)
	} else {
		_, err = s.store.GetUser(ctx, studentID)
	}
	if err != nil {
		return survey.Response{}, err
	}
	return s.save(ctx, a, as, studentID, in.Answers, in.IsCompleted)
}

// UpdateResponse edits a response by id. Only the deadline is re-checked.
func (s *Service) UpdateResponse(ctx context.Context, a survey.Actor, id int64, in ResponseUpdate) (survey.Response, error) {
	cur, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return survey.Response{}, err
	}
	if !policy.CanSubmitFor(a, *cur.StudentID) {
		return survey.Response{}, survey.PermissionDeniedf("response %d belongs to another student", id)
	}
	as, err := s.store.GetAssignment(ctx, cur.AssignmentID)
	if err != nil {
		return survey.Response{}, err
	}
	if !s.now().Before(as.DeadlineAt) {
		return survey.Response{}, survey.Conflictf("assignment %d deadline has passed", as.ID)
	}
	answers, completed := cur.Answers, cur.IsCompleted
	if in.Answers != nil {
		answers = in.Answers
	}
	if in.IsCompleted != nil {
		completed = *in.IsCompleted
	}
	return s.save(ctx, a, as, *cur.StudentID, answers, completed)
}

func (s *Service) save(ctx context.Context, a survey.Actor, as survey.Assignment, studentID int64, answers map[string]survey.Answer, completed bool) (survey.Response, error) {
	q, err := s.store.GetQuestionnaire(ctx, as.QuestionnaireID)
	if err != nil {
		return survey.Response{}, err
	}
	answers, err = survey.ReconcileAnswers(q.Questions, answers)
	if err != nil {
		return survey.Response{}, err
	}
	r, err := s.store.UpsertResponse(ctx, survey.Response{
		AssignmentID: as.ID,
		StudentID:    &studentID,
		Answers:      answers,
		IsCompleted:  completed,
		SubmittedAt:  s.now().UTC(),
	})
	if err != nil {
		return survey.Response{}, err
	}
	metrics.ResponsesSubmitted.WithLabelValues(strconv.FormatBool(completed)).Inc()
	s.invalidateStats(ctx)
	return policy.AnonymizeResponse(a, r), nil
}

func (s *Service) GetResponse(ctx context.Context, a survey.Actor, id int64) (survey.Response, error) {
	r, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return r, err
	}
	if !policy.CanViewResponse(a, r) {
		return survey.Response{}, survey.PermissionDeniedf("response %d", id)
	}
	return policy.AnonymizeResponse(a, r), nil
}

func (s *Service) ListResponses(ctx context.Context, a survey.Actor, f survey.ResponseFilter) (survey.PageResult[survey.Response], error) {
	f, err := policy.ScopeResponses(a, f)
	if err != nil {
		return survey.PageResult[survey.Response]{}, err
	}
	if f, err = f.Normalize(); err != nil {
		return survey.PageResult[survey.Response]{}, err
	}
	items, total, err := s.store.FilterResponses(ctx, f)
	if err != nil {
		return survey.PageResult[survey.Response]{}, err
	}
	return survey.NewPageResult(policy.AnonymizeResponses(a, items), total, f.Page), nil
}

func (s *Service) DeleteResponse(ctx context.Context, a survey.Actor, id int64) error {
	if !policy.CanDeleteResponse(a) {
		return survey.PermissionDeniedf("role %q cannot delete responses", a.Role)
	}
	if err := s.store.DeleteResponse(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}
