package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

func scopePredicates(scope survey.StatsScope, from, to *time.Time) *predicates {
	p := &predicates{}
	p.eq("r.assignment_id", scope.AssignmentID)
	p.eq("a.questionnaire_id", scope.QuestionnaireID)
	p.eq("a.group_id", scope.GroupID)
	p.between("r.submitted_at", from, to)
	return p
}

// ResponseTotals counts responses and completed responses in scope.
func (s *Store) ResponseTotals(ctx context.Context, scope survey.StatsScope, from, to *time.Time) (int64, int64, error) {
	p := scopePredicates(scope, from, to)
	var total, completed int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN r.is_completed = 1 THEN 1 ELSE 0 END), 0)
		  FROM responses r
		  JOIN assignments a ON a.id = r.assignment_id`+p.where(), p.args...).Scan(&total, &completed)
	return total, completed, err
}

// ResponsePoints returns (submitted_at, is_completed) for every response in scope, oldest first.
func (s *Store) ResponsePoints(ctx context.Context, scope survey.StatsScope, from, to *time.Time) ([]survey.ResponsePoint, error) {
	p := scopePredicates(scope, from, to)
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.submitted_at, r.is_completed
		  FROM responses r
		  JOIN assignments a ON a.id = r.assignment_id`+p.where()+`
		 ORDER BY r.submitted_at ASC`, p.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []survey.ResponsePoint
	for rows.Next() {
		var (
			at        int64
			completed int
		)
		if err := rows.Scan(&at, &completed); err != nil {
			return nil, err
		}
		out = append(out, survey.ResponsePoint{SubmittedAt: fromUnix(at), IsCompleted: completed != 0})
	}
	return out, rows.Err()
}

// ProgressRows lists every assignment in the query's universe with the
// student's response, if any.
func (s *Store) ProgressRows(ctx context.Context, studentID int64, q survey.ProgressQuery) ([]survey.ProgressRow, error) {
	var p predicates
	join := p.bind(studentID)
	if len(q.AssignmentIDs) > 0 {
		p.and("a.id IN (" + p.bindAll(int64Args(q.AssignmentIDs)) + ")")
	}
	p.eq("a.questionnaire_id", q.QuestionnaireID)
	p.eq("a.group_id", q.GroupID)

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, r.id, r.is_completed, r.submitted_at
		  FROM assignments a
		  LEFT JOIN responses r ON r.assignment_id = a.id AND r.student_id = `+join+p.where()+`
		 ORDER BY a.id ASC`, p.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []survey.ProgressRow
	for rows.Next() {
		var (
			row                      survey.ProgressRow
			respID, completed, subAt sql.NullInt64
		)
		if err := rows.Scan(&row.AssignmentID, &respID, &completed, &subAt); err != nil {
			return nil, err
		}
		if respID.Valid {
			row.Responded = true
			row.IsCompleted = completed.Int64 != 0
			row.SubmittedAt = fromUnix(subAt.Int64)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
