package http

import (
	"net/http"

	syncx "github.com/mind-engage/mindengage-survey/internal/sync"
)

// GET /events?since=<seq>&limit=
// Feed of the notification outbox for the messaging worker.
func ListEventsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Events == nil {
			writeError(w, http.StatusNotFound, "event feed disabled")
			return
		}
		p := newParams(r.URL.Query())
		since := p.int64("since")
		limit := p.int("limit", 0)
		if p.err != nil {
			d.fail(w, r, p.err)
			return
		}
		var from int64
		if since != nil {
			from = *since
		}
		evs, err := d.Events.List(r.Context(), from, limit)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if evs == nil {
			evs = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, evs)
	}
}
