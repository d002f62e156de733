package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-survey/internal/service"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// GET /assignments?status=active,upcoming&questionnaire_id=&group_id=&creator_id=&search=&start_from=...
func ListAssignmentsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		p := newParams(r.URL.Query())
		f := survey.AssignmentFilter{
			QuestionnaireID: p.int64("questionnaire_id"),
			GroupID:         p.int64("group_id"),
			CreatorID:       p.int64("creator_id"),
			StartFrom:       p.time("start_from"),
			StartTo:         p.time("start_to"),
			DeadlineFrom:    p.time("deadline_from"),
			DeadlineTo:      p.time("deadline_to"),
			Search:          p.str("search"),
			AggregateBounds: p.bounds(),
			Page:            p.page(),
		}
		for _, s := range p.list("status") {
			f.Statuses = append(f.Statuses, survey.AssignmentStatus(s))
		}
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		out, err := d.Svc.ListAssignments(r.Context(), a, f)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func ActiveAssignmentsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		out, err := d.Svc.ActiveAssignments(r.Context(), a)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if out == nil {
			out = []survey.Assignment{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func CreateAssignmentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		var in service.AssignmentInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		as, err := d.Svc.Assign(r.Context(), a, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, as)
	}
}

// POST /assignments/schedule  {"questionnaire_id", "group_ids", "schedule_type", "start_time", "deadline_time", "weekdays"?, "until"?, "dates"?}
func ScheduleAssignmentsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		var in service.ScheduleInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		out, err := d.Svc.Schedule(r.Context(), a, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func GetAssignmentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "assignmentID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		as, err := d.Svc.GetAssignment(r.Context(), a, id)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, as)
	}
}

// PATCH /assignments/{assignmentID}  {"name"?, "start_time"?, "deadline_time"?}
func UpdateAssignmentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "assignmentID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var p service.AssignmentPatch
		if err := decode(r, &p); err != nil {
			d.fail(w, r, err)
			return
		}
		as, err := d.Svc.UpdateAssignment(r.Context(), a, id, p)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, as)
	}
}

func DeleteAssignmentHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "assignmentID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.DeleteAssignment(r.Context(), a, id); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
