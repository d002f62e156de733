package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	authmw "github.com/mind-engage/mindengage-survey/internal/auth/middleware"
	"github.com/mind-engage/mindengage-survey/internal/service"
	syncx "github.com/mind-engage/mindengage-survey/internal/sync"
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

// Deps is what the handler factories close over.
type Deps struct {
	Svc    *service.Service
	Events *syncx.EventRepo // nil disables GET /events
	Log    *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps domain errors onto status codes. Infrastructure errors are logged
// and reported without detail.
func (d Deps) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, survey.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, survey.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, survey.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, survey.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		d.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// actor returns the authenticated caller or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (survey.Actor, bool) {
	a, ok := authmw.ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return a, ok
}

func urlID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, survey.Validationf("%s must be an integer", key)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return survey.Validationf("bad json: %v", err)
	}
	return nil
}
