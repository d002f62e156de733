package rbac

// Permission names used by the router.
const (
	PermQuestionnaireView   = "questionnaire:view"
	PermQuestionnaireList   = "questionnaire:list"
	PermQuestionnaireCreate = "questionnaire:create"
	PermQuestionnaireUpdate = "questionnaire:update"
	PermQuestionnaireDelete = "questionnaire:delete"

	PermAssignmentView   = "assignment:view"
	PermAssignmentList   = "assignment:list"
	PermAssignmentCreate = "assignment:create"
	PermAssignmentUpdate = "assignment:update"
	PermAssignmentDelete = "assignment:delete"

	PermResponseSubmit  = "response:submit"
	PermResponseViewOwn = "response:view-own"
	PermResponseViewAll = "response:view-all"
	PermResponseDelete  = "response:delete"

	PermStatisticsView  = "statistics:view"
	PermProgressViewOwn = "progress:view-own"
	PermProgressViewAll = "progress:view-all"

	PermGroupView   = "group:view"
	PermGroupManage = "group:manage"

	PermUsersList       = "users:list"
	PermUsersManage     = "users:manage"
	PermUsersBulkUpsert = "users:bulk_upsert"
	PermUserViewOwn     = "user:view-own"
	PermChangePassword  = "user:change_password"

	PermEventsRead = "events:read"
)

// RolePermissions is the default policy. Admin holds everything.
var RolePermissions = map[string][]string{
	"student": {
		PermQuestionnaireView,
		PermAssignmentView,
		PermResponseSubmit,
		PermResponseViewOwn,
		PermProgressViewOwn,
		PermUserViewOwn,
		PermChangePassword,
	},
	"mentor": {
		"questionnaire:*",
		"assignment:*",
		PermResponseSubmit,
		PermResponseViewAll,
		PermResponseDelete,
		PermStatisticsView,
		PermProgressViewAll,
		PermGroupView,
		PermUserViewOwn,
		PermChangePassword,
	},
	"admin": {
		"*",
	},
}
