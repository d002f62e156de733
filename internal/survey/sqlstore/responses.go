package sqlstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const responseFrom = `
	FROM responses r
	JOIN assignments a ON a.id = r.assignment_id
	LEFT JOIN users u ON u.id = r.student_id`

const responseSelect = `SELECT r.id, r.assignment_id, r.student_id, r.answers_json, r.is_completed, r.submitted_at, r.created_at, r.updated_at,
	COALESCE(u.full_name, ''), COALESCE(u.username, '')`

var responseSortCols = map[string]string{
	"submitted_at": "r.submitted_at",
	"created_at":   "r.created_at",
	"updated_at":   "r.updated_at",
}

func scanResponse(r rowScanner) (survey.Response, error) {
	var (
		resp                        survey.Response
		studentID                   int64
		answers                     string
		completed                   int
		submitted, created, updated int64
		fullName, username          string
	)
	if err := r.Scan(&resp.ID, &resp.AssignmentID, &studentID, &answers, &completed, &submitted, &created, &updated,
		&fullName, &username); err != nil {
		return resp, err
	}
	if err := json.Unmarshal([]byte(answers), &resp.Answers); err != nil {
		return resp, fmt.Errorf("response %d: decode answers: %w", resp.ID, err)
	}
	resp.StudentID = &studentID
	resp.Student = &survey.StudentRef{ID: strconv.FormatInt(studentID, 10), FullName: fullName, Username: username}
	resp.IsCompleted = completed != 0
	resp.SubmittedAt = fromUnix(submitted)
	resp.CreatedAt, resp.UpdatedAt = fromUnix(created), fromUnix(updated)
	return resp, nil
}

// UpsertResponse inserts or replaces the single response for (assignment, student)
// in one statement. created_at survives replacement.
func (s *Store) UpsertResponse(ctx context.Context, r survey.Response) (survey.Response, error) {
	if r.StudentID == nil {
		return survey.Response{}, survey.Validationf("student_id is required")
	}
	if r.Answers == nil {
		r.Answers = map[string]survey.Answer{}
	}
	answers, err := encodeAnswers(r.Answers)
	if err != nil {
		return survey.Response{}, err
	}
	now := s.stamp()
	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO responses (assignment_id, student_id, answers_json, answers_fold, is_completed, submitted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (assignment_id, student_id) DO UPDATE SET
		  answers_json = EXCLUDED.answers_json,
		  answers_fold = EXCLUDED.answers_fold,
		  is_completed = EXCLUDED.is_completed,
		  submitted_at = EXCLUDED.submitted_at,
		  updated_at   = EXCLUDED.updated_at
		RETURNING id`,
		r.AssignmentID, *r.StudentID, answers, fold(answers), b2i(r.IsCompleted), unix(r.SubmittedAt), now).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return survey.Response{}, survey.NotFoundf("assignment %d or student %d", r.AssignmentID, *r.StudentID)
		}
		return survey.Response{}, err
	}
	return s.GetResponse(ctx, id)
}

// encodeAnswers keeps &, < and > literal so answer_contains can match them.
func encodeAnswers(answers map[string]survey.Answer) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(answers); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func (s *Store) GetResponse(ctx context.Context, id int64) (survey.Response, error) {
	r, err := scanResponse(s.db.QueryRowContext(ctx, responseSelect+responseFrom+` WHERE r.id = $1`, id))
	return r, mapErr(err, fmt.Sprintf("response %d", id))
}

func (s *Store) DeleteResponse(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, fmt.Sprintf("response %d", id))
}

// FilterResponses returns one page of matches and the size of the full match set.
// f must already be normalized.
func (s *Store) FilterResponses(ctx context.Context, f survey.ResponseFilter) ([]survey.Response, int64, error) {
	var p predicates
	p.eq("r.assignment_id", f.AssignmentID)
	p.eq("a.questionnaire_id", f.QuestionnaireID)
	p.eq("a.group_id", f.GroupID)
	p.eq("r.student_id", f.StudentID)
	if f.IsCompleted != nil {
		p.and("r.is_completed = " + p.bind(b2i(*f.IsCompleted)))
	}
	p.between("r.submitted_at", f.SubmittedFrom, f.SubmittedTo)
	p.contains("r.answers_fold", f.AnswerContains)

	order, ok := responseSortCols[f.SortBy]
	if !ok {
		return nil, 0, survey.Validationf("unknown sort_by %q", f.SortBy)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+responseFrom+p.where(), p.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []survey.Response{}, 0, nil
	}

	rows, err := s.db.QueryContext(ctx, responseSelect+responseFrom+p.where()+p.page(order, "r.id", f.Page), p.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []survey.Response{}
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}
