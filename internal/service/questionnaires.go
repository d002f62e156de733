package service

import (
	"context"

	"github.com/mind-engage/mindengage-survey/internal/policy"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const (
	defaultLatest = 5
	maxLatest     = 50
)

type QuestionnaireInput struct {
	Title       string                     `json:"title" validate:"required,max=200"`
	Description string                     `json:"description" validate:"max=4000"`
	Questions   []survey.Question          `json:"questions"`
	Status      survey.QuestionnaireStatus `json:"status"`
	Tags        []string                   `json:"tags" validate:"max=20,dive,max=40"`
}

// clean sanitizes free text and validates the result.
func (in QuestionnaireInput) clean() (QuestionnaireInput, error) {
	in.Title = survey.CleanText(in.Title)
	in.Description = survey.CleanText(in.Description)
	qs := make([]survey.Question, len(in.Questions))
	for i, q := range in.Questions {
		q.Text = survey.CleanText(q.Text)
		if q.Options != nil {
			opts := make([]string, len(q.Options))
			for j, o := range q.Options {
				opts[j] = survey.CleanText(o)
			}
			q.Options = opts
		}
		qs[i] = q
	}
	in.Questions = qs
	in.Tags = survey.NormalizeTags(in.Tags)

	if err := survey.ValidateStruct(in); err != nil {
		return in, err
	}
	if in.Status == "" {
		in.Status = survey.QuestionnaireDraft
	} else if !in.Status.Valid() {
		return in, survey.Validationf("unknown questionnaire status %q", in.Status)
	}
	return in, survey.ValidateQuestions(in.Questions)
}

func (s *Service) CreateQuestionnaire(ctx context.Context, a survey.Actor, in QuestionnaireInput) (survey.Questionnaire, error) {
	if !policy.CanCreate(a) {
		return survey.Questionnaire{}, survey.PermissionDeniedf("role %q cannot create questionnaires", a.Role)
	}
	in, err := in.clean()
	if err != nil {
		return survey.Questionnaire{}, err
	}
	return s.store.CreateQuestionnaire(ctx, survey.Questionnaire{
		Title:       in.Title,
		Description: in.Description,
		Questions:   in.Questions,
		Status:      in.Status,
		Tags:        in.Tags,
		CreatedBy:   a.ID,
	})
}

func (s *Service) UpdateQuestionnaire(ctx context.Context, a survey.Actor, id int64, in QuestionnaireInput) (survey.Questionnaire, error) {
	cur, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return survey.Questionnaire{}, err
	}
	if !policy.CanModify(a, cur.CreatedBy) {
		return survey.Questionnaire{}, survey.PermissionDeniedf("questionnaire %d belongs to another user", id)
	}
	in, err = in.clean()
	if err != nil {
		return survey.Questionnaire{}, err
	}
	cur.Title, cur.Description, cur.Questions, cur.Status, cur.Tags = in.Title, in.Description, in.Questions, in.Status, in.Tags
	return s.store.UpdateQuestionnaire(ctx, cur)
}

// DeleteQuestionnaire fails with ErrConflict while assignments reference it.
func (s *Service) DeleteQuestionnaire(ctx context.Context, a survey.Actor, id int64) error {
	cur, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(a, cur.CreatedBy) {
		return survey.PermissionDeniedf("questionnaire %d belongs to another user", id)
	}
	return s.store.DeleteQuestionnaire(ctx, id)
}

func (s *Service) GetQuestionnaire(ctx context.Context, a survey.Actor, id int64) (survey.Questionnaire, error) {
	q, err := s.store.GetQuestionnaire(ctx, id)
	if err != nil {
		return q, err
	}
	if !policy.CanViewQuestionnaire(a, q) {
		return survey.Questionnaire{}, survey.PermissionDeniedf("questionnaire %d", id)
	}
	return q, nil
}

// LatestQuestionnaires is the authoring shortcut: mentors see their own, admins everything.
func (s *Service) LatestQuestionnaires(ctx context.Context, a survey.Actor, limit int) ([]survey.Questionnaire, error) {
	if !policy.CanCreate(a) {
		return nil, survey.PermissionDeniedf("role %q cannot list questionnaires", a.Role)
	}
	if limit <= 0 {
		limit = defaultLatest
	}
	if limit > maxLatest {
		return nil, survey.Validationf("limit must be at most %d", maxLatest)
	}
	f, err := policy.ScopeQuestionnaires(a, survey.QuestionnaireFilter{})
	if err != nil {
		return nil, err
	}
	return s.store.LatestQuestionnaires(ctx, limit, f.CreatorID)
}

func (s *Service) ListQuestionnaires(ctx context.Context, a survey.Actor, f survey.QuestionnaireFilter) (survey.PageResult[survey.Questionnaire], error) {
	if !policy.CanCreate(a) {
		return survey.PageResult[survey.Questionnaire]{}, survey.PermissionDeniedf("role %q cannot list questionnaires", a.Role)
	}
	f, err := policy.ScopeQuestionnaires(a, f)
	if err != nil {
		return survey.PageResult[survey.Questionnaire]{}, err
	}
	if f, err = f.Normalize(); err != nil {
		return survey.PageResult[survey.Questionnaire]{}, err
	}
	items, total, err := s.store.FilterQuestionnaires(ctx, f)
	if err != nil {
		return survey.PageResult[survey.Questionnaire]{}, err
	}
	return survey.NewPageResult(items, total, f.Page), nil
}
