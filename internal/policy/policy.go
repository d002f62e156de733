// Package policy decides what an actor may see or change. Every function is
// pure; callers pass the actor and the record or filter in question.
package policy

import (
	"github.com/mind-engage/mindengage-survey/internal/survey"
)

const anonymousID = "anonymous"

func known(a survey.Actor) bool { return a.Role.Valid() }

// CanViewQuestionnaire and CanViewAssignment: any authenticated role may read a
// single questionnaire or assignment; students need them to answer.
func CanViewQuestionnaire(a survey.Actor, _ survey.Questionnaire) bool { return known(a) }
func CanViewAssignment(a survey.Actor, _ survey.Assignment) bool       { return known(a) }

// CanViewResponse: admins and mentors see every response, students only their own.
func CanViewResponse(a survey.Actor, r survey.Response) bool {
	switch a.Role {
	case survey.RoleAdmin, survey.RoleMentor:
		return true
	case survey.RoleStudent:
		return r.StudentID != nil && *r.StudentID == a.ID
	}
	return false
}

// CanModify covers update and delete of questionnaires and assignments.
func CanModify(a survey.Actor, ownerID int64) bool {
	switch a.Role {
	case survey.RoleAdmin:
		return true
	case survey.RoleMentor:
		return ownerID == a.ID
	}
	return false
}

// CanCreate reports whether a may author questionnaires and assignments.
func CanCreate(a survey.Actor) bool {
	return a.Role == survey.RoleAdmin || a.Role == survey.RoleMentor
}

// CanSubmitFor: students answer only for themselves; staff may answer on behalf of students.
func CanSubmitFor(a survey.Actor, studentID int64) bool {
	switch a.Role {
	case survey.RoleAdmin, survey.RoleMentor:
		return true
	case survey.RoleStudent:
		return studentID == a.ID
	}
	return false
}

func CanDeleteResponse(a survey.Actor) bool {
	return a.Role == survey.RoleAdmin || a.Role == survey.RoleMentor
}

func CanViewStatistics(a survey.Actor) bool {
	return a.Role == survey.RoleAdmin || a.Role == survey.RoleMentor
}

func CanViewProgress(a survey.Actor, studentID int64) bool {
	switch a.Role {
	case survey.RoleAdmin, survey.RoleMentor:
		return true
	case survey.RoleStudent:
		return studentID == a.ID
	}
	return false
}

// ShouldAnonymize is true for mentors; admins always see identities.
func ShouldAnonymize(a survey.Actor) bool { return a.Role == survey.RoleMentor }

// scopeOwner applies the creator rule for non-admin listings: unset becomes the
// actor's own id, a different id is refused.
func scopeOwner(a survey.Actor, requested *int64, what string) (*int64, error) {
	if !known(a) {
		return nil, survey.PermissionDeniedf("unknown role %q", a.Role)
	}
	if a.Role == survey.RoleAdmin {
		return requested, nil
	}
	if requested != nil && *requested != a.ID {
		return nil, survey.PermissionDeniedf("cannot list %s created by user %d", what, *requested)
	}
	id := a.ID
	return &id, nil
}

func ScopeQuestionnaires(a survey.Actor, f survey.QuestionnaireFilter) (survey.QuestionnaireFilter, error) {
	owner, err := scopeOwner(a, f.CreatorID, "questionnaires")
	if err != nil {
		return f, err
	}
	f.CreatorID = owner
	return f, nil
}

func ScopeAssignments(a survey.Actor, f survey.AssignmentFilter) (survey.AssignmentFilter, error) {
	owner, err := scopeOwner(a, f.CreatorID, "assignments")
	if err != nil {
		return f, err
	}
	f.CreatorID = owner
	return f, nil
}

// ScopeResponses forces students onto their own responses. Mentors may query
// any student and receive anonymized rows; unset means all.
func ScopeResponses(a survey.Actor, f survey.ResponseFilter) (survey.ResponseFilter, error) {
	switch a.Role {
	case survey.RoleAdmin, survey.RoleMentor:
		return f, nil
	case survey.RoleStudent:
		if f.StudentID != nil && *f.StudentID != a.ID {
			return f, survey.PermissionDeniedf("students may only list their own responses")
		}
		id := a.ID
		f.StudentID = &id
		return f, nil
	}
	return f, survey.PermissionDeniedf("unknown role %q", a.Role)
}

// AnonymizeResponse masks the student's identity for mentor viewers.
func AnonymizeResponse(a survey.Actor, r survey.Response) survey.Response {
	if !ShouldAnonymize(a) {
		return r
	}
	r.StudentID = nil
	r.Student = &survey.StudentRef{ID: anonymousID}
	return r
}

func AnonymizeResponses(a survey.Actor, rs []survey.Response) []survey.Response {
	out := make([]survey.Response, len(rs))
	for i, r := range rs {
		out[i] = AnonymizeResponse(a, r)
	}
	return out
}

func AnonymizeProgress(a survey.Actor, p survey.Progress) survey.Progress {
	if ShouldAnonymize(a) {
		p.StudentID = nil
	}
	return p
}
