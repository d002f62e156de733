package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-survey/internal/service"
)

// ListGroupsHandler serves GET /groups, or GET /groups/active when activeOnly.
func ListGroupsHandler(d Deps, activeOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		gs, err := d.Svc.ListGroups(r.Context(), a, activeOnly)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, gs)
	}
}

func GetGroupHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "groupID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		g, err := d.Svc.GetGroup(r.Context(), a, id)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

// PUT /groups/{groupID}  {"title", "type"?, "is_active"?}
func SaveGroupHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "groupID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		var in service.GroupInput
		if err := decode(r, &in); err != nil {
			d.fail(w, r, err)
			return
		}
		g, err := d.Svc.SaveGroup(r.Context(), a, id, in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}

func DeactivateGroupHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		id, err := urlID(r, "groupID")
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Svc.DeactivateGroup(r.Context(), a, id); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
