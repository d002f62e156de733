package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-survey/internal/policy"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type AssignmentInput struct {
	QuestionnaireID int64     `json:"questionnaire_id" validate:"required"`
	GroupID         int64     `json:"group_id" validate:"required"`
	Name            string    `json:"name" validate:"max=200"`
	StartAt         time.Time `json:"start_time"`
	DeadlineAt      time.Time `json:"deadline_time"`
}

// AssignmentPatch changes only the fields that are set.
type AssignmentPatch struct {
	Name       *string    `json:"name" validate:"omitempty,max=200"`
	StartAt    *time.Time `json:"start_time"`
	DeadlineAt *time.Time `json:"deadline_time"`
}

// Assign distributes a questionnaire to a group for [start, deadline). The
// group must exist and be active; the created notice is sent after commit.
func (s *Service) Assign(ctx context.Context, a survey.Actor, in AssignmentInput) (survey.Assignment, error) {
	if !policy.CanCreate(a) {
		return survey.Assignment{}, survey.PermissionDeniedf("role %q cannot create assignments", a.Role)
	}
	in.Name = survey.CleanText(in.Name)
	if err := survey.ValidateStruct(in); err != nil {
		return survey.Assignment{}, err
	}
	if err := survey.ValidateWindow(in.StartAt, in.DeadlineAt); err != nil {
		return survey.Assignment{}, err
	}

	created, err := s.store.CreateAssignment(ctx, survey.Assignment{
		QuestionnaireID: in.QuestionnaireID,
		GroupID:         in.GroupID,
		Name:            in.Name,
		StartAt:         in.StartAt.UTC(),
		DeadlineAt:      in.DeadlineAt.UTC(),
		CreatedBy:       a.ID,
	})
	if err != nil {
		return survey.Assignment{}, err
	}
	_ = s.notify(ctx, survey.Notification{
		Kind:         survey.NotifyAssignmentCreated,
		AssignmentID: created.ID,
		GroupID:      created.GroupID,
		Title:        created.Name,
		StartAt:      created.StartAt,
		DeadlineAt:   created.DeadlineAt,
	})
	return created.WithStatus(s.now()), nil
}

// ScheduleInput assigns one questionnaire to several groups over a set of
// windows; see survey.Schedule for how the windows are derived.
type ScheduleInput struct {
	QuestionnaireID int64               `json:"questionnaire_id" validate:"required"`
	GroupIDs        []int64             `json:"group_ids" validate:"required,min=1,dive,required"`
	Name            string              `json:"name" validate:"max=200"`
	Kind            survey.ScheduleKind `json:"schedule_type" validate:"required"`
	StartAt         time.Time           `json:"start_time"`
	DeadlineAt      time.Time           `json:"deadline_time"`
	Weekdays        []time.Weekday      `json:"weekdays"`
	Until           string              `json:"until" validate:"omitempty,datetime=2006-01-02"`
	Dates           []string            `json:"dates" validate:"dive,datetime=2006-01-02"`
}

// Schedule creates one assignment per group and window. Windows, groups and
// the questionnaire are all checked before the first assignment is created.
func (s *Service) Schedule(ctx context.Context, a survey.Actor, in ScheduleInput) ([]survey.Assignment, error) {
	if !policy.CanCreate(a) {
		return nil, survey.PermissionDeniedf("role %q cannot create assignments", a.Role)
	}
	if err := survey.ValidateStruct(in); err != nil {
		return nil, err
	}
	windows, err := survey.Schedule{
		Kind:       in.Kind,
		StartAt:    in.StartAt,
		DeadlineAt: in.DeadlineAt,
		Weekdays:   in.Weekdays,
		Until:      in.Until,
		Dates:      in.Dates,
	}.Windows()
	if err != nil {
		return nil, err
	}

	groups := make([]int64, 0, len(in.GroupIDs))
	seen := map[int64]bool{}
	for _, id := range in.GroupIDs {
		if !seen[id] {
			seen[id] = true
			groups = append(groups, id)
		}
	}
	if n := len(groups) * len(windows); n > survey.MaxScheduled {
		return nil, survey.Validationf("schedule would create %d assignments, limit is %d", n, survey.MaxScheduled)
	}
	if _, err := s.store.GetQuestionnaire(ctx, in.QuestionnaireID); err != nil {
		return nil, err
	}
	for _, id := range groups {
		g, err := s.store.GetGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !g.IsActive {
			return nil, survey.Conflictf("group %d is inactive", id)
		}
	}

	out := make([]survey.Assignment, 0, len(groups)*len(windows))
	for _, w := range windows {
		for _, gid := range groups {
			created, err := s.Assign(ctx, a, AssignmentInput{
				QuestionnaireID: in.QuestionnaireID,
				GroupID:         gid,
				Name:            in.Name,
				StartAt:         w.StartAt,
				DeadlineAt:      w.DeadlineAt,
			})
			if err != nil {
				s.log.Error("schedule stopped part way",
					zap.Int64("questionnaire_id", in.QuestionnaireID), zap.Int("created", len(out)), zap.Error(err))
				return out, err
			}
			out = append(out, created)
		}
	}
	s.log.Info("schedule created",
		zap.Int64("questionnaire_id", in.QuestionnaireID), zap.String("kind", string(in.Kind)), zap.Int("assignments", len(out)))
	return out, nil
}

func (s *Service) UpdateAssignment(ctx context.Context, a survey.Actor, id int64, p AssignmentPatch) (survey.Assignment, error) {
	cur, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return survey.Assignment{}, err
	}
	if !policy.CanModify(a, cur.CreatedBy) {
		return survey.Assignment{}, survey.PermissionDeniedf("assignment %d belongs to another user", id)
	}
	if err := survey.ValidateStruct(p); err != nil {
		return survey.Assignment{}, err
	}
	if p.Name != nil {
		name := survey.CleanText(*p.Name)
		if name == "" {
			return survey.Assignment{}, survey.Validationf("name must not be empty")
		}
		cur.Name = name
	}
	if p.StartAt != nil {
		cur.StartAt = p.StartAt.UTC()
	}
	if p.DeadlineAt != nil {
		cur.DeadlineAt = p.DeadlineAt.UTC()
	}
	if err := survey.ValidateWindow(cur.StartAt, cur.DeadlineAt); err != nil {
		return survey.Assignment{}, err
	}
	updated, err := s.store.UpdateAssignment(ctx, cur)
	if err != nil {
		return survey.Assignment{}, err
	}
	return updated.WithStatus(s.now()), nil
}

// DeleteAssignment removes the assignment together with its responses.
func (s *Service) DeleteAssignment(ctx context.Context, a survey.Actor, id int64) error {
	cur, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanModify(a, cur.CreatedBy) {
		return survey.PermissionDeniedf("assignment %d belongs to another user", id)
	}
	if err := s.store.DeleteAssignment(ctx, id); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

func (s *Service) GetAssignment(ctx context.Context, a survey.Actor, id int64) (survey.Assignment, error) {
	as, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return as, err
	}
	if !policy.CanViewAssignment(a, as) {
		return survey.Assignment{}, survey.PermissionDeniedf("assignment %d", id)
	}
	return as.WithStatus(s.now()), nil
}

// ActiveAssignments lists assignments currently open for answers.
func (s *Service) ActiveAssignments(ctx context.Context, a survey.Actor) ([]survey.Assignment, error) {
	if !a.Role.Valid() {
		return nil, survey.PermissionDeniedf("unknown role %q", a.Role)
	}
	return s.store.ActiveAssignments(ctx, s.now())
}

func (s *Service) ListAssignments(ctx context.Context, a survey.Actor, f survey.AssignmentFilter) (survey.PageResult[survey.Assignment], error) {
	if !policy.CanCreate(a) {
		return survey.PageResult[survey.Assignment]{}, survey.PermissionDeniedf("role %q cannot list assignments", a.Role)
	}
	f, err := policy.ScopeAssignments(a, f)
	if err != nil {
		return survey.PageResult[survey.Assignment]{}, err
	}
	if f, err = f.Normalize(); err != nil {
		return survey.PageResult[survey.Assignment]{}, err
	}
	f.Now = s.now()
	items, total, err := s.store.FilterAssignments(ctx, f)
	if err != nil {
		return survey.PageResult[survey.Assignment]{}, err
	}
	return survey.NewPageResult(items, total, f.Page), nil
}

// CloseExpired sends the closed notice for every assignment whose deadline
// has passed and returns how many were marked. An assignment whose notice
// fails stays unmarked and moves behind the others for the next sweep.
func (s *Service) CloseExpired(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	now := s.now()
	due, err := s.store.DueForClose(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, as := range due {
		err := s.notify(ctx, survey.Notification{
			Kind:         survey.NotifyAssignmentClosed,
			AssignmentID: as.ID,
			GroupID:      as.GroupID,
			Title:        as.Name,
			StartAt:      as.StartAt,
			DeadlineAt:   as.DeadlineAt,
		})
		if err != nil {
			if err := s.store.MarkCloseAttempted(ctx, as.ID, now); err != nil {
				return closed, err
			}
			continue
		}
		if err := s.store.MarkCloseNotified(ctx, as.ID, now); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// RunCloser sweeps on every tick until ctx is done.
func (s *Service) RunCloser(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.CloseExpired(ctx, 0)
			if err != nil {
				s.log.Error("close sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("assignments closed", zap.Int("count", n))
			}
		}
	}
}
