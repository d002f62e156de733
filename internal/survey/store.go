package survey

import (
	"context"
	"strconv"
	"time"
)

// Store persists and queries survey entities. Missing rows surface as ErrNotFound.
type Store interface {
	Ping(ctx context.Context) error

	// users
	EnsureUser(ctx context.Context, id int64, username, fullName string) (User, error) // first contact: insert as student, refresh names
	UpsertUser(ctx context.Context, u User) (User, error)                               // provisioning: full overwrite, keeps hash when u.PasswordHash == ""
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context, role Role) ([]User, error)
	SetUserRole(ctx context.Context, id int64, role Role) (User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error

	// groups
	UpsertGroup(ctx context.Context, g Group) (Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	ListGroups(ctx context.Context, activeOnly bool) ([]Group, error)
	SetGroupActive(ctx context.Context, id int64, active bool) error

	// questionnaires
	CreateQuestionnaire(ctx context.Context, q Questionnaire) (Questionnaire, error)
	UpdateQuestionnaire(ctx context.Context, q Questionnaire) (Questionnaire, error)
	DeleteQuestionnaire(ctx context.Context, id int64) error // ErrConflict while assignments reference it
	GetQuestionnaire(ctx context.Context, id int64) (Questionnaire, error)
	LatestQuestionnaires(ctx context.Context, limit int, creatorID *int64) ([]Questionnaire, error)
	FilterQuestionnaires(ctx context.Context, f QuestionnaireFilter) ([]Questionnaire, int64, error)

	// assignments; CreateAssignment fails with ErrConflict on an inactive group
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	DeleteAssignment(ctx context.Context, id int64) error
	GetAssignment(ctx context.Context, id int64) (Assignment, error)
	ActiveAssignments(ctx context.Context, now time.Time) ([]Assignment, error)
	FilterAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, int64, error)
	DueForClose(ctx context.Context, now time.Time, limit int) ([]Assignment, error)
	MarkCloseNotified(ctx context.Context, id int64, at time.Time) error
	MarkCloseAttempted(ctx context.Context, id int64, at time.Time) error

	// responses; UpsertResponse is atomic on (assignment_id, student_id)
	UpsertResponse(ctx context.Context, r Response) (Response, error)
	GetResponse(ctx context.Context, id int64) (Response, error)
	DeleteResponse(ctx context.Context, id int64) error
	FilterResponses(ctx context.Context, f ResponseFilter) ([]Response, int64, error)

	// aggregates
	ResponseTotals(ctx context.Context, scope StatsScope, from, to *time.Time) (total, completed int64, err error)
	ResponsePoints(ctx context.Context, scope StatsScope, from, to *time.Time) ([]ResponsePoint, error)
	ProgressRows(ctx context.Context, studentID int64, q ProgressQuery) ([]ProgressRow, error)
}

type NotificationKind string

const (
	NotifyAssignmentCreated NotificationKind = "assignment_created"
	NotifyAssignmentClosed  NotificationKind = "assignment_closed"
)

// Notification asks the messaging collaborator to tell a group about an assignment.
type Notification struct {
	Kind         NotificationKind `json:"kind"`
	AssignmentID int64            `json:"assignment_id"`
	GroupID      int64            `json:"group_id"`
	Title        string           `json:"title"`
	StartAt      time.Time        `json:"start_time"`
	DeadlineAt   time.Time        `json:"deadline_time"`
}

// Notifier is the outbound seam; failures never undo the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
