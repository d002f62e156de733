package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// ErrInvalidCredentials is returned by Authenticate for any login failure.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLen = 8

// WithHashCost sets the bcrypt cost for new password hashes.
func WithHashCost(cost int) Option { return func(s *Service) { s.hashCost = cost } }

type UserInput struct {
	ID       int64       `json:"id" validate:"required"`
	Username string      `json:"username" validate:"max=64"`
	FullName string      `json:"full_name" validate:"max=200"`
	Role     survey.Role `json:"role"`
	Active   *bool       `json:"active"`
	Password string      `json:"password,omitempty"`
}

// Authenticate checks username and password. Students may log in only when allowStudents is set.
func (s *Service) Authenticate(ctx context.Context, username, password string, allowStudents bool) (survey.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, survey.ErrNotFound) {
		return survey.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return survey.User{}, err
	}
	if !u.Active || u.PasswordHash == "" {
		return survey.User{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return survey.User{}, ErrInvalidCredentials
	}
	if u.Role == survey.RoleStudent && !allowStudents {
		return survey.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// BootstrapAdmin provisions the configured administrator at start.
func (s *Service) BootstrapAdmin(ctx context.Context, id int64, username, passwordHash string) (survey.User, error) {
	return s.store.UpsertUser(ctx, survey.User{
		ID: id, Username: username, FullName: username, Role: survey.RoleAdmin, Active: true, PasswordHash: passwordHash,
	})
}

// RegisterContact records a user met through the messaging side. New users
// become students; existing ones only get their names refreshed.
func (s *Service) RegisterContact(ctx context.Context, id int64, username, fullName string) (survey.User, error) {
	return s.store.EnsureUser(ctx, id, survey.CleanText(username), survey.CleanText(fullName))
}

func (s *Service) Me(ctx context.Context, a survey.Actor) (survey.User, error) {
	return s.store.GetUser(ctx, a.ID)
}

func (s *Service) GetUser(ctx context.Context, a survey.Actor, id int64) (survey.User, error) {
	if !a.IsAdmin() && a.ID != id {
		return survey.User{}, survey.PermissionDeniedf("cannot view user %d", id)
	}
	return s.store.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, a survey.Actor, role survey.Role) ([]survey.User, error) {
	if !a.IsAdmin() {
		return nil, survey.PermissionDeniedf("only admins may list users")
	}
	if role != "" && !role.Valid() {
		return nil, survey.Validationf("unknown role %q", role)
	}
	users, err := s.store.ListUsers(ctx, role)
	if users == nil && err == nil {
		users = []survey.User{}
	}
	return users, err
}

// UpsertUser provisions or overwrites a user. An empty password keeps the stored hash.
func (s *Service) UpsertUser(ctx context.Context, a survey.Actor, in UserInput) (survey.User, error) {
	if !a.IsAdmin() {
		return survey.User{}, survey.PermissionDeniedf("only admins may provision users")
	}
	u, err := s.userFromInput(in)
	if err != nil {
		return survey.User{}, err
	}
	return s.store.UpsertUser(ctx, u)
}

// BulkUpsertUsers provisions users in order and stops at the first failure,
// reporting how many were written.
func (s *Service) BulkUpsertUsers(ctx context.Context, a survey.Actor, in []UserInput) (int, error) {
	if !a.IsAdmin() {
		return 0, survey.PermissionDeniedf("only admins may provision users")
	}
	users := make([]survey.User, len(in))
	for i, row := range in {
		u, err := s.userFromInput(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		users[i] = u
	}
	for i, u := range users {
		if _, err := s.store.UpsertUser(ctx, u); err != nil {
			return i, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return len(users), nil
}

func (s *Service) userFromInput(in UserInput) (survey.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = survey.CleanText(in.FullName)
	if err := survey.ValidateStruct(in); err != nil {
		return survey.User{}, err
	}
	if in.Role == "" {
		in.Role = survey.RoleStudent
	}
	if !in.Role.Valid() {
		return survey.User{}, survey.Validationf("unknown role %q", in.Role)
	}
	u := survey.User{ID: in.ID, Username: in.Username, FullName: in.FullName, Role: in.Role, Active: true}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return survey.User{}, err
		}
		u.PasswordHash = hash
	}
	return u, nil
}

func (s *Service) SetUserRole(ctx context.Context, a survey.Actor, id int64, role survey.Role) (survey.User, error) {
	if !a.IsAdmin() {
		return survey.User{}, survey.PermissionDeniedf("only admins may change roles")
	}
	if !role.Valid() {
		return survey.User{}, survey.Validationf("unknown role %q", role)
	}
	if id == a.ID && role != survey.RoleAdmin {
		return survey.User{}, survey.Conflictf("admins cannot demote themselves")
	}
	return s.store.SetUserRole(ctx, id, role)
}

// DeactivateUser blocks further logins and token use. Users are never hard-deleted.
func (s *Service) DeactivateUser(ctx context.Context, a survey.Actor, id int64) error {
	if !a.IsAdmin() {
		return survey.PermissionDeniedf("only admins may deactivate users")
	}
	if id == a.ID {
		return survey.Conflictf("admins cannot deactivate themselves")
	}
	return s.store.SetUserActive(ctx, id, false)
}

func (s *Service) ChangePassword(ctx context.Context, a survey.Actor, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return survey.Validationf("new_password must be at least %d characters", minPasswordLen)
	}
	u, err := s.store.GetUser(ctx, a.ID)
	if err != nil {
		return err
	}
	if u.PasswordHash != "" && bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return survey.PermissionDeniedf("incorrect old password")
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.store.SetPasswordHash(ctx, a.ID, hash)
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", survey.Validationf("password must be at least %d characters", minPasswordLen)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
