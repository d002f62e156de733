package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-survey/internal/survey"
)

func statsQuery(p *params) survey.StatsQuery {
	return survey.StatsQuery{
		StatsScope: survey.StatsScope{
			AssignmentID:    p.int64("assignment_id"),
			QuestionnaireID: p.int64("questionnaire_id"),
			GroupID:         p.int64("group_id"),
		},
		Period: survey.Period(p.str("time_period")),
		From:   p.time("from"),
		To:     p.time("to"),
	}
}

// StatisticsHandler serves GET /statistics and the per-entity variants. scopeKey
// names the URL parameter that pins the scope ("" for the combined query).
func StatisticsHandler(d Deps, scopeKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p := newParams(r.URL.Query())
		q := statsQuery(p)
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		if scopeKey != "" {
			id, err := urlID(r, scopeKey)
			if err != nil {
				d.fail(w, r, err)
				return
			}
			switch scopeKey {
			case "assignmentID":
				q.AssignmentID = &id
			case "questionnaireID":
				q.QuestionnaireID = &id
			case "groupID":
				q.GroupID = &id
			}
		}
		st, err := d.Svc.Statistics(r.Context(), a, q)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// GET /students/{studentID}/progress?assignment_ids=1,2&questionnaire_id=&group_id=
func StudentProgressHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "studentID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		p := newParams(r.URL.Query())
		q := survey.ProgressQuery{
			AssignmentIDs:   p.int64s("assignment_ids"),
			QuestionnaireID: p.int64("questionnaire_id"),
			GroupID:         p.int64("group_id"),
		}
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		out, err := d.Svc.StudentProgress(r.Context(), a, id, q)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
