package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/db"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const assignmentFrom = `
	FROM assignments a
	LEFT JOIN (
	  SELECT assignment_id,
	         COUNT(*) AS response_count,
	         SUM(CASE WHEN is_completed = 1 THEN 1 ELSE 0 END) AS completed_count
	    FROM responses
	   GROUP BY assignment_id
	) agg ON agg.assignment_id = a.id`

var (
	aCountExpr = "COALESCE(agg.response_count, 0)"
	aRateExpr  = rateExpr("agg.response_count", "agg.completed_count")

	assignmentSortCols = map[string]string{
		"deadline_time":   "a.deadline_at",
		"start_time":      "a.start_at",
		"name":            "a.name_fold",
		"created_at":      "a.created_at",
		"response_count":  aCountExpr,
		"completion_rate": aRateExpr,
	}
)

var assignmentSelect = `SELECT a.id, a.questionnaire_id, a.group_id, a.name, a.start_at, a.deadline_at, a.created_by, a.created_at, a.updated_at, ` +
	aCountExpr + `, ` + aRateExpr

// scanAssignment leaves Status empty; callers derive it against their own clock.
func scanAssignment(r rowScanner) (survey.Assignment, error) {
	var (
		a                                 survey.Assignment
		start, deadline, created, updated int64
	)
	if err := r.Scan(&a.ID, &a.QuestionnaireID, &a.GroupID, &a.Name, &start, &deadline, &a.CreatedBy, &created, &updated,
		&a.ResponseCount, &a.CompletionRate); err != nil {
		return a, err
	}
	a.StartAt, a.DeadlineAt = fromUnix(start), fromUnix(deadline)
	a.CreatedAt, a.UpdatedAt = fromUnix(created), fromUnix(updated)
	return a, nil
}

// CreateAssignment checks the group and questionnaire and inserts in one
// transaction, so an inactive group leaves nothing behind.
func (s *Store) CreateAssignment(ctx context.Context, a survey.Assignment) (survey.Assignment, error) {
	now := s.stamp()
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRowContext(ctx, `SELECT is_active FROM chat_groups WHERE id = $1`, a.GroupID).Scan(&active)
		if errors.Is(err, sql.ErrNoRows) {
			return survey.NotFoundf("group %d", a.GroupID)
		}
		if err != nil {
			return err
		}
		if active == 0 {
			return survey.Conflictf("group %d is inactive", a.GroupID)
		}

		var title string
		err = tx.QueryRowContext(ctx, `SELECT title FROM questionnaires WHERE id = $1`, a.QuestionnaireID).Scan(&title)
		if errors.Is(err, sql.ErrNoRows) {
			return survey.NotFoundf("questionnaire %d", a.QuestionnaireID)
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(a.Name) == "" {
			a.Name = title
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO assignments (questionnaire_id, group_id, name, name_fold, start_at, deadline_at, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			RETURNING id`,
			a.QuestionnaireID, a.GroupID, a.Name, fold(a.Name), unix(a.StartAt), unix(a.DeadlineAt), a.CreatedBy, now).Scan(&a.ID)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return survey.Assignment{}, survey.NotFoundf("user %d", a.CreatedBy)
		}
		return survey.Assignment{}, err
	}
	return s.GetAssignment(ctx, a.ID)
}

// UpdateAssignment rewrites name and window. Moving the deadline re-arms the close notification.
func (s *Store) UpdateAssignment(ctx context.Context, a survey.Assignment) (survey.Assignment, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assignments
		   SET name = $1, name_fold = $2, start_at = $3, deadline_at = $4, updated_at = $5,
		       closed_notified_at = CASE WHEN deadline_at = $4 THEN closed_notified_at ELSE NULL END,
		       close_attempted_at = CASE WHEN deadline_at = $4 THEN close_attempted_at ELSE NULL END
		 WHERE id = $6`,
		a.Name, fold(a.Name), unix(a.StartAt), unix(a.DeadlineAt), s.stamp(), a.ID)
	if err != nil {
		return survey.Assignment{}, err
	}
	if err := expectAffected(res, fmt.Sprintf("assignment %d", a.ID)); err != nil {
		return survey.Assignment{}, err
	}
	return s.GetAssignment(ctx, a.ID)
}

// DeleteAssignment removes the assignment and, by cascade, its responses.
func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	what := fmt.Sprintf("assignment %d", id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, what)
	}
	return expectAffected(res, what)
}

func (s *Store) GetAssignment(ctx context.Context, id int64) (survey.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx, assignmentSelect+assignmentFrom+` WHERE a.id = $1`, id))
	return a, mapErr(err, fmt.Sprintf("assignment %d", id))
}

// ActiveAssignments lists assignments open at now, nearest deadline first.
func (s *Store) ActiveAssignments(ctx context.Context, now time.Time) ([]survey.Assignment, error) {
	var p predicates
	p.and(statusCond(&p, survey.StatusActive, now))
	return s.queryAssignments(ctx, assignmentSelect+assignmentFrom+p.where()+` ORDER BY a.deadline_at ASC, a.id ASC`, p.args, now)
}

func statusCond(p *predicates, st survey.AssignmentStatus, now time.Time) string {
	switch st {
	case survey.StatusUpcoming:
		return "a.start_at > " + p.bind(now.Unix())
	case survey.StatusActive:
		return "(a.start_at <= " + p.bind(now.Unix()) + " AND a.deadline_at > " + p.bind(now.Unix()) + ")"
	default:
		return "a.deadline_at <= " + p.bind(now.Unix())
	}
}

// FilterAssignments returns one page of matches and the size of the full match set.
// f must already be normalized; statuses are evaluated against f.Now.
func (s *Store) FilterAssignments(ctx context.Context, f survey.AssignmentFilter) ([]survey.Assignment, int64, error) {
	var p predicates
	if len(f.Statuses) > 0 {
		ors := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			ors[i] = statusCond(&p, st, f.Now)
		}
		p.and("(" + strings.Join(ors, " OR ") + ")")
	}
	p.eq("a.questionnaire_id", f.QuestionnaireID)
	p.eq("a.group_id", f.GroupID)
	p.eq("a.created_by", f.CreatorID)
	p.between("a.start_at", f.StartFrom, f.StartTo)
	p.between("a.deadline_at", f.DeadlineFrom, f.DeadlineTo)
	p.contains("a.name_fold", f.Search)
	p.bounds(aCountExpr, aRateExpr, f.AggregateBounds)

	order, ok := assignmentSortCols[f.SortBy]
	if !ok {
		return nil, 0, survey.Validationf("unknown sort_by %q", f.SortBy)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+assignmentFrom+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []survey.Assignment{}, 0, nil
	}
	items, err := s.queryAssignments(ctx, assignmentSelect+assignmentFrom+p.where()+p.page(order, "a.id", f.Page), p.args, f.Now)
	return items, total, err
}

// DueForClose returns past-deadline assignments whose close notice has not been sent.
// Never-attempted rows come first, then the least recently failed, so a run of
// failing notices cannot hold the batch.
func (s *Store) DueForClose(ctx context.Context, now time.Time, limit int) ([]survey.Assignment, error) {
	var p predicates
	p.and("a.deadline_at <= " + p.bind(now.Unix()))
	p.and("a.closed_notified_at IS NULL")
	query := assignmentSelect + assignmentFrom + p.where() +
		` ORDER BY COALESCE(a.close_attempted_at, 0) ASC, a.deadline_at ASC, a.id ASC LIMIT ` + p.bind(limit)
	return s.queryAssignments(ctx, query, p.args, now)
}

// MarkCloseAttempted records a failed close notice; the row stays due.
func (s *Store) MarkCloseAttempted(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assignments SET close_attempted_at = $1 WHERE id = $2`, unix(at), id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("assignment %d", id))
}

func (s *Store) MarkCloseNotified(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assignments SET closed_notified_at = $1 WHERE id = $2`, unix(at), id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("assignment %d", id))
}

func (s *Store) queryAssignments(ctx context.Context, query string, args []any, now time.Time) ([]survey.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []survey.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a.WithStatus(now))
	}
	return out, rows.Err()
}
