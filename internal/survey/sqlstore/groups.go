package sqlstore

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const groupCols = `id, title, type, is_active, created_at, updated_at`

func scanGroup(r rowScanner) (survey.Group, error) {
	var (
		g                survey.Group
		active           int
		created, updated int64
	)
	if err := r.Scan(&g.ID, &g.Title, &g.Type, &active, &created, &updated); err != nil {
		return g, err
	}
	g.IsActive = active != 0
	g.CreatedAt, g.UpdatedAt = fromUnix(created), fromUnix(updated)
	return g, nil
}

// UpsertGroup registers a chat or refreshes its title, type and active flag.
func (s *Store) UpsertGroup(ctx context.Context, g survey.Group) (survey.Group, error) {
	if g.Type == "" {
		g.Type = "group"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_groups (id, title, type, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
		  title      = EXCLUDED.title,
		  type       = EXCLUDED.type,
		  is_active  = EXCLUDED.is_active,
		  updated_at = EXCLUDED.updated_at`,
		g.ID, g.Title, g.Type, b2i(g.IsActive), s.stamp())
	if err != nil {
		return survey.Group{}, err
	}
	return s.GetGroup(ctx, g.ID)
}

func (s *Store) GetGroup(ctx context.Context, id int64) (survey.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM chat_groups WHERE id = $1`, id))
	return g, mapErr(err, fmt.Sprintf("group %d", id))
}

func (s *Store) ListGroups(ctx context.Context, activeOnly bool) ([]survey.Group, error) {
	q := `SELECT ` + groupCols + ` FROM chat_groups`
	if activeOnly {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY title, id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []survey.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SetGroupActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_groups SET is_active = $1, updated_at = $2 WHERE id = $3`, b2i(active), s.stamp(), id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("group %d", id))
}
