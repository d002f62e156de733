package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mind-engage/mindengage-survey/internal/db"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// Response aggregates are summed over every assignment of a questionnaire.
const questionnaireFrom = `
	FROM questionnaires q
	LEFT JOIN (
	  SELECT a.questionnaire_id AS qid,
	         COUNT(r.id) AS response_count,
	         SUM(CASE WHEN r.is_completed = 1 THEN 1 ELSE 0 END) AS completed_count
	    FROM assignments a
	    JOIN responses r ON r.assignment_id = a.id
	   GROUP BY a.questionnaire_id
	) agg ON agg.qid = q.id`

var (
	qCountExpr = "COALESCE(agg.response_count, 0)"
	qRateExpr  = rateExpr("agg.response_count", "agg.completed_count")

	questionnaireSortCols = map[string]string{
		"created_at":      "q.created_at",
		"updated_at":      "q.updated_at",
		"title":           "q.title_fold",
		"status":          "q.status",
		"response_count":  qCountExpr,
		"completion_rate": qRateExpr,
	}
)

var questionnaireSelect = `SELECT q.id, q.title, q.description, q.questions_json, q.status, q.created_by, q.created_at, q.updated_at, ` +
	qCountExpr + `, ` + qRateExpr

func scanQuestionnaire(r rowScanner) (survey.Questionnaire, error) {
	var (
		q                survey.Questionnaire
		qjson, status    string
		created, updated int64
	)
	if err := r.Scan(&q.ID, &q.Title, &q.Description, &qjson, &status, &q.CreatedBy, &created, &updated,
		&q.ResponseCount, &q.CompletionRate); err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return q, fmt.Errorf("questionnaire %d: decode questions: %w", q.ID, err)
	}
	q.Status = survey.QuestionnaireStatus(status)
	q.CreatedAt, q.UpdatedAt = fromUnix(created), fromUnix(updated)
	q.Tags = []string{}
	return q, nil
}

func (s *Store) CreateQuestionnaire(ctx context.Context, q survey.Questionnaire) (survey.Questionnaire, error) {
	qjson, err := json.Marshal(q.Questions)
	if err != nil {
		return survey.Questionnaire{}, err
	}
	if q.Status == "" {
		q.Status = survey.QuestionnaireDraft
	}
	now := s.stamp()
	var id int64
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO questionnaires (title, title_fold, description, questions_json, status, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			RETURNING id`,
			q.Title, fold(q.Title), q.Description, string(qjson), string(q.Status), q.CreatedBy, now).Scan(&id); err != nil {
			return err
		}
		return writeTags(ctx, tx, id, q.Tags)
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return survey.Questionnaire{}, survey.NotFoundf("user %d", q.CreatedBy)
		}
		return survey.Questionnaire{}, err
	}
	return s.GetQuestionnaire(ctx, id)
}

// UpdateQuestionnaire overwrites content, status and tags; created_by is immutable.
func (s *Store) UpdateQuestionnaire(ctx context.Context, q survey.Questionnaire) (survey.Questionnaire, error) {
	qjson, err := json.Marshal(q.Questions)
	if err != nil {
		return survey.Questionnaire{}, err
	}
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE questionnaires
			   SET title = $1, title_fold = $2, description = $3, questions_json = $4, status = $5, updated_at = $6
			 WHERE id = $7`,
			q.Title, fold(q.Title), q.Description, string(qjson), string(q.Status), s.stamp(), q.ID)
		if err != nil {
			return err
		}
		if err := expectAffected(res, fmt.Sprintf("questionnaire %d", q.ID)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM questionnaire_tags WHERE questionnaire_id = $1`, q.ID); err != nil {
			return err
		}
		return writeTags(ctx, tx, q.ID, q.Tags)
	})
	if err != nil {
		return survey.Questionnaire{}, err
	}
	return s.GetQuestionnaire(ctx, q.ID)
}

func writeTags(ctx context.Context, tx *sql.Tx, id int64, tags []string) error {
	for _, t := range survey.NormalizeTags(tags) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO questionnaire_tags (questionnaire_id, tag) VALUES ($1, $2)`, id, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteQuestionnaire(ctx context.Context, id int64) error {
	what := fmt.Sprintf("questionnaire %d", id)
	res, err := s.db.ExecContext(ctx, `DELETE FROM questionnaires WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, what)
	}
	return expectAffected(res, what)
}

func (s *Store) GetQuestionnaire(ctx context.Context, id int64) (survey.Questionnaire, error) {
	q, err := scanQuestionnaire(s.db.QueryRowContext(ctx, questionnaireSelect+questionnaireFrom+` WHERE q.id = $1`, id))
	if err != nil {
		return q, mapErr(err, fmt.Sprintf("questionnaire %d", id))
	}
	out := []survey.Questionnaire{q}
	if err := s.attachTags(ctx, out); err != nil {
		return q, err
	}
	return out[0], nil
}

// LatestQuestionnaires returns the most recently updated questionnaires, optionally by one creator.
func (s *Store) LatestQuestionnaires(ctx context.Context, limit int, creatorID *int64) ([]survey.Questionnaire, error) {
	var p predicates
	p.eq("q.created_by", creatorID)
	query := questionnaireSelect + questionnaireFrom + p.where() +
		` ORDER BY q.updated_at DESC, q.id DESC LIMIT ` + p.bind(limit)
	return s.queryQuestionnaires(ctx, query, p.args)
}

// FilterQuestionnaires returns one page of matches and the size of the full match set.
// f must already be normalized.
func (s *Store) FilterQuestionnaires(ctx context.Context, f survey.QuestionnaireFilter) ([]survey.Questionnaire, int64, error) {
	var p predicates
	p.eq("q.created_by", f.CreatorID)
	if len(f.Statuses) > 0 {
		vs := make([]any, len(f.Statuses))
		for i, st := range f.Statuses {
			vs[i] = string(st)
		}
		p.and("q.status IN (" + p.bindAll(vs) + ")")
	}
	p.contains("q.title_fold", f.Search)
	if len(f.Tags) > 0 {
		vs := make([]any, len(f.Tags))
		for i, t := range f.Tags {
			vs[i] = t
		}
		in := p.bindAll(vs)
		p.and(`q.id IN (SELECT questionnaire_id FROM questionnaire_tags WHERE tag IN (` + in +
			`) GROUP BY questionnaire_id HAVING COUNT(DISTINCT tag) = ` + p.bind(len(f.Tags)) + `)`)
	}
	p.between("q.created_at", f.CreatedFrom, f.CreatedTo)
	p.bounds(qCountExpr, qRateExpr, f.AggregateBounds)

	order, ok := questionnaireSortCols[f.SortBy]
	if !ok {
		return nil, 0, survey.Validationf("unknown sort_by %q", f.SortBy)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+questionnaireFrom+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []survey.Questionnaire{}, 0, nil
	}
	query := questionnaireSelect + questionnaireFrom + p.where() + p.page(order, "q.id", f.Page)
	items, err := s.queryQuestionnaires(ctx, query, p.args)
	return items, total, err
}

func (s *Store) queryQuestionnaires(ctx context.Context, query string, args []any) ([]survey.Questionnaire, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []survey.Questionnaire{}
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, s.attachTags(ctx, out)
}

func (s *Store) attachTags(ctx context.Context, qs []survey.Questionnaire) error {
	if len(qs) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(qs))
	ids := make([]int64, len(qs))
	for i, q := range qs {
		idx[q.ID] = i
		ids[i] = q.ID
	}
	var p predicates
	in := p.bindAll(int64Args(ids))
	rows, err := s.db.QueryContext(ctx,
		`SELECT questionnaire_id, tag FROM questionnaire_tags WHERE questionnaire_id IN (`+in+`) ORDER BY tag`, p.args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		i := idx[id]
		qs[i].Tags = append(qs[i].Tags, tag)
	}
	return rows.Err()
}
