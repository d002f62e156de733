package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// GET /responses?assignment_id=&questionnaire_id=&group_id=&student_id=&is_completed=&submitted_from=&answer_contains=
func ListResponsesHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p := newParams(r.URL.Query())
		f := survey.ResponseFilter{
			AssignmentID:    p.int64("assignment_id"),
			QuestionnaireID: p.int64("questionnaire_id"),
			GroupID:         p.int64("group_id"),
			StudentID:       p.int64("student_id"),
			IsCompleted:     p.bool("is_completed"),
			SubmittedFrom:   p.time("submitted_from"),
			SubmittedTo:     p.time("submitted_to"),
			AnswerContains:  p.str("answer_contains"),
			Page:            p.page(),
		}
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		out, err := d.Svc.ListResponses(r.Context(), a, f)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /responses  {"assignment_id", "student_id"?, "answers", "is_completed", "student"?}
func SubmitResponseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		var in service.SubmitInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		resp, err := d.Svc.Submit(r.Context(), a, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func GetResponseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "responseID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		resp, err := d.Svc.GetResponse(r.Context(), a, id)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func UpdateResponseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "responseID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var in service.ResponseUpdate
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		resp, err := d.Svc.UpdateResponse(r.Context(), a, id, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func DeleteResponseHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "responseID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.DeleteResponse(r.Context(), a, id); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
