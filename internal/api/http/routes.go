package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-survey/internal/auth/middleware"
	"github.com/mind-engage/mindengage-survey/internal/rbac"
)

// isSelf reports whether the URL parameter key names the token subject.
func isSelf(key string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		sub, ok := authmw.SubjectFromContext(r.Context())
		return ok && chi.URLParam(r, key) == strconv.FormatInt(sub, 10)
	}
}

// Mount registers the protected API on r. The caller installs authentication
// first so that the subject and role are in context.
func Mount(r chi.Router, d Deps) {
	r.Get("/auth/me", MeHandler(d))

	r.Route("/users", func(ur chi.Router) {
		ur.With(rbac.Require(rbac.PermUsersList)).Get("/", ListUsersHandler(d))
		ur.With(rbac.Require(rbac.PermUsersBulkUpsert)).Post("/bulk", BulkUpsertUsersHandler(d))
		ur.With(rbac.Require(rbac.PermChangePassword)).Post("/change-password", ChangePasswordHandler(d))
		ur.With(rbac.RequireOwnerOr(rbac.PermUsersManage, rbac.PermUserViewOwn, isSelf("userID"))).
			Get("/{userID}", GetUserHandler(d))
		ur.With(rbac.Require(rbac.PermUsersManage)).Put("/{userID}", UpsertUserHandler(d))
		ur.With(rbac.Require(rbac.PermUsersManage)).Put("/{userID}/role", SetUserRoleHandler(d))
		ur.With(rbac.Require(rbac.PermUsersManage)).Post("/{userID}/deactivate", DeactivateUserHandler(d))
	})

	r.Route("/groups", func(gr chi.Router) {
		gr.With(rbac.Require(rbac.PermGroupView)).Get("/", ListGroupsHandler(d, false))
		gr.With(rbac.Require(rbac.PermGroupView)).Get("/active", ListGroupsHandler(d, true))
		gr.With(rbac.Require(rbac.PermGroupView)).Get("/{groupID}", GetGroupHandler(d))
		gr.With(rbac.Require(rbac.PermGroupManage)).Put("/{groupID}", SaveGroupHandler(d))
		gr.With(rbac.Require(rbac.PermGroupManage)).Post("/{groupID}/deactivate", DeactivateGroupHandler(d))
	})

	r.Route("/questionnaires", func(qr chi.Router) {
		qr.With(rbac.Require(rbac.PermQuestionnaireList)).Get("/", ListQuestionnairesHandler(d))
		qr.With(rbac.Require(rbac.PermQuestionnaireList)).Get("/latest", LatestQuestionnairesHandler(d))
		qr.With(rbac.Require(rbac.PermQuestionnaireCreate)).Post("/", CreateQuestionnaireHandler(d))
		qr.With(rbac.Require(rbac.PermQuestionnaireView)).Get("/{questionnaireID}", GetQuestionnaireHandler(d))
		qr.With(rbac.Require(rbac.PermQuestionnaireUpdate)).Put("/{questionnaireID}", UpdateQuestionnaireHandler(d))
		qr.With(rbac.Require(rbac.PermQuestionnaireDelete)).Delete("/{questionnaireID}", DeleteQuestionnaireHandler(d))
	})

	r.Route("/assignments", func(ar chi.Router) {
		ar.With(rbac.Require(rbac.PermAssignmentList)).Get("/", ListAssignmentsHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentView)).Get("/active", ActiveAssignmentsHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentCreate)).Post("/", CreateAssignmentHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentCreate)).Post("/schedule", ScheduleAssignmentsHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentView)).Get("/{assignmentID}", GetAssignmentHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentUpdate)).Patch("/{assignmentID}", UpdateAssignmentHandler(d))
		ar.With(rbac.Require(rbac.PermAssignmentDelete)).Delete("/{assignmentID}", DeleteAssignmentHandler(d))
	})

	r.Route("/responses", func(rr chi.Router) {
		view := rbac.RequireAny(rbac.PermResponseViewOwn, rbac.PermResponseViewAll)
		rr.With(view).Get("/", ListResponsesHandler(d))
		rr.With(rbac.Require(rbac.PermResponseSubmit)).Post("/", SubmitResponseHandler(d))
		rr.With(view).Get("/{responseID}", GetResponseHandler(d))
		rr.With(rbac.Require(rbac.PermResponseSubmit)).Put("/{responseID}", UpdateResponseHandler(d))
		rr.With(rbac.Require(rbac.PermResponseDelete)).Delete("/{responseID}", DeleteResponseHandler(d))
	})

	r.Route("/statistics", func(sr chi.Router) {
		sr.Use(rbac.Require(rbac.PermStatisticsView))
		sr.Get("/", StatisticsHandler(d, ""))
		sr.Get("/assignments/{assignmentID}", StatisticsHandler(d, "assignmentID"))
		sr.Get("/questionnaires/{questionnaireID}", StatisticsHandler(d, "questionnaireID"))
		sr.Get("/groups/{groupID}", StatisticsHandler(d, "groupID"))
	})

	r.With(rbac.RequireOwnerOr(rbac.PermProgressViewAll, rbac.PermProgressViewOwn, isSelf("studentID"))).
		Get("/students/{studentID}/progress", StudentProgressHandler(d))

	r.With(rbac.Require(rbac.PermEventsRead)).Get("/events", ListEventsHandler(d))
}
