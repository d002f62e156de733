package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// GET /questionnaires?status=&search=&tags=&creator_id=&created_from=&created_to=&response_count_min=...
func ListQuestionnairesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p := newParams(r.URL.Query())
		f := survey.QuestionnaireFilter{
			CreatorID:       p.int64("creator_id"),
			Search:          p.str("search"),
			Tags:            p.list("tags"),
			CreatedFrom:     p.time("created_from"),
			CreatedTo:       p.time("created_to"),
			AggregateBounds: p.bounds(),
			Page:            p.page(),
		}
		for _, s := range p.list("status") {
			f.Statuses = append(f.Statuses, survey.QuestionnaireStatus(s))
		}
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		out, err := d.Svc.ListQuestionnaires(r.Context(), a, f)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /questionnaires/latest?limit=5
func LatestQuestionnairesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p := newParams(r.URL.Query())
		limit := p.int("limit", 0)
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		out, err := d.Svc.LatestQuestionnaires(r.Context(), a, limit)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if out == nil {
			out = []survey.Questionnaire{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func CreateQuestionnaireHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		var in service.QuestionnaireInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		q, err := d.Svc.CreateQuestionnaire(r.Context(), a, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func GetQuestionnaireHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "questionnaireID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		q, err := d.Svc.GetQuestionnaire(r.Context(), a, id)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func UpdateQuestionnaireHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "questionnaireID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var in service.QuestionnaireInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		q, err := d.Svc.UpdateQuestionnaire(r.Context(), a, id, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionnaireHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "questionnaireID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.DeleteQuestionnaire(r.Context(), a, id); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
