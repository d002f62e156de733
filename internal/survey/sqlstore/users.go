package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const userCols = `id, username, full_name, role, active, password_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (survey.User, error) {
	var (
		u                survey.User
		username         sql.NullString
		role             string
		active           int
		created, updated int64
	)
	if err := r.Scan(&u.ID, &username, &u.FullName, &role, &active, &u.PasswordHash, &created, &updated); err != nil {
		return u, err
	}
	u.Username = username.String
	u.Role = survey.Role(role)
	u.Active = active != 0
	u.CreatedAt, u.UpdatedAt = fromUnix(created), fromUnix(updated)
	return u, nil
}

func (s *Store) EnsureUser(ctx context.Context, id int64, username, fullName string) (survey.User, error) {
	now := s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, 'student', 1, $4, $4)
		ON CONFLICT (id) DO UPDATE SET
		  username   = COALESCE(EXCLUDED.username, users.username),
		  full_name  = CASE WHEN EXCLUDED.full_name = '' THEN users.full_name ELSE EXCLUDED.full_name END,
		  updated_at = EXCLUDED.updated_at`,
		id, nullString(username), fullName, now)
	if err != nil {
		return survey.User{}, mapErr(err, fmt.Sprintf("username %q", username))
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpsertUser(ctx context.Context, u survey.User) (survey.User, error) {
	now := s.stamp()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, full_name, role, active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE SET
		  username      = EXCLUDED.username,
		  full_name     = EXCLUDED.full_name,
		  role          = EXCLUDED.role,
		  active        = EXCLUDED.active,
		  password_hash = CASE WHEN EXCLUDED.password_hash = '' THEN users.password_hash ELSE EXCLUDED.password_hash END,
		  updated_at    = EXCLUDED.updated_at`,
		u.ID, nullString(u.Username), u.FullName, string(u.Role), b2i(u.Active), u.PasswordHash, now)
	if err != nil {
		return survey.User{}, mapErr(err, fmt.Sprintf("username %q", u.Username))
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id int64) (survey.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	return u, mapErr(err, fmt.Sprintf("user %d", id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (survey.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	return u, mapErr(err, fmt.Sprintf("user %q", username))
}

// ListUsers returns all users, or only those with role when it is set.
func (s *Store) ListUsers(ctx context.Context, role survey.Role) ([]survey.User, error) {
	q := `SELECT ` + userCols + ` FROM users`
	var args []any
	if role != "" {
		q += ` WHERE role = $1`
		args = append(args, string(role))
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []survey.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) SetUserRole(ctx context.Context, id int64, role survey.Role) (survey.User, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`, string(role), s.stamp(), id)
	if err != nil {
		return survey.User{}, err
	}
	if err := expectAffected(res, fmt.Sprintf("user %d", id)); err != nil {
		return survey.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = $1, updated_at = $2 WHERE id = $3`, b2i(active), s.stamp(), id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("user %d", id))
}

func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, s.stamp(), id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("user %d", id))
}
