package service

import (
	"context"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

type GroupInput struct {
	Title    string `json:"title" validate:"required,max=255"`
	Type     string `json:"type" validate:"omitempty,oneof=group supergroup channel"`
	IsActive *bool  `json:"is_active"`
}

func canSeeGroups(a survey.Actor) bool { return a.IsAdmin() || a.IsMentor() }

// SaveGroup registers a chat or updates it. Only admins manage groups.
func (s *Service) SaveGroup(ctx context.Context, a survey.Actor, id int64, in GroupInput) (survey.Group, error) {
	if !a.IsAdmin() {
		return survey.Group{}, survey.PermissionDeniedf("only admins may manage groups")
	}
	in.Title = survey.CleanText(in.Title)
	if err := survey.ValidateStruct(in); err != nil {
		return survey.Group{}, err
	}
	g := survey.Group{ID: id, Title: in.Title, Type: in.Type, IsActive: true}
	if in.IsActive != nil {
		g.IsActive = *in.IsActive
	}
	return s.store.UpsertGroup(ctx, g)
}

func (s *Service) GetGroup(ctx context.Context, a survey.Actor, id int64) (survey.Group, error) {
	if !canSeeGroups(a) {
		return survey.Group{}, survey.PermissionDeniedf("role %q cannot view groups", a.Role)
	}
	return s.store.GetGroup(ctx, id)
}

func (s *Service) ListGroups(ctx context.Context, a survey.Actor, activeOnly bool) ([]survey.Group, error) {
	if !canSeeGroups(a) {
		return nil, survey.PermissionDeniedf("role %q cannot view groups", a.Role)
	}
	gs, err := s.store.ListGroups(ctx, activeOnly)
	if gs == nil && err == nil {
		gs = []survey.Group{}
	}
	return gs, err
}

// DeactivateGroup stops new assignments to the group; existing ones are kept.
func (s *Service) DeactivateGroup(ctx context.Context, a survey.Actor, id int64) error {
	if !a.IsAdmin() {
		return survey.PermissionDeniedf("only admins may manage groups")
	}
	return s.store.SetGroupActive(ctx, id, false)
}
